package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sekolahdigital/opr/internal/bootstrap"
	"github.com/sekolahdigital/opr/internal/export"
	"github.com/sekolahdigital/opr/internal/model"
	"github.com/sekolahdigital/opr/internal/service"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "opr",
		Short: "OPR - 学校一页报告生成系统",
		Long:  `OPR 把活动表单转成规范的一页报告（One Page Report），支持 PDF/海报导出、AI 起草叙述与上报归档。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			core, err = bootstrap.NewCore(context.Background(), cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(senaraiCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(baruCmd())
	rootCmd.AddCommand(simpanCmd())
	rootCmd.AddCommand(lihatCmd())
	rootCmd.AddCommand(drafCmd())
	rootCmd.AddCommand(eksportCmd())
	rootCmd.AddCommand(hantarCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// senaraiCmd 列出本地报告
func senaraiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "senarai",
		Short: "列出本地存储的全部报告（最新在前）",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			reports, err := core.Store.ListAll(ctx)
			if err != nil {
				fmt.Printf("❌ 读取报告失败: %v\n", err)
				os.Exit(1)
			}
			if len(reports) == 0 {
				fmt.Println("📚 本地还没有报告，用 'opr baru' 创建一份")
				return
			}

			fmt.Printf("📋 本地报告 (%d 份)\n", len(reports))
			fmt.Println("═══════════════════════════════════════")
			for _, r := range reports {
				status := "📝"
				if r.Status == model.StatusSubmitted {
					status = "✅"
				}
				fmt.Printf("%s %s | %s | %s (%s)\n", status, shortID(r.ID), r.Unit, r.TajukProgram, r.Tarikh)
			}
			fmt.Println("═══════════════════════════════════════")
		},
	}
}

// statsCmd 仪表盘统计
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "查看仪表盘统计",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			stats, err := core.Services.Lifecycle.Stats(ctx)
			if err != nil {
				fmt.Printf("❌ 统计失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Println("📊 仪表盘")
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("\n📈 总报告数: %d\n", stats.TotalReports)

			fmt.Printf("\n🏫 按单位\n")
			for _, unit := range model.AllUnits {
				fmt.Printf("  • %s: %d\n", unit, stats.ByUnit[unit])
			}

			if len(stats.RecentReports) > 0 {
				fmt.Printf("\n🕘 最近报告\n")
				for _, r := range stats.RecentReports {
					fmt.Printf("  • %s (%s) ★%d\n", r.TajukProgram, r.Tarikh, service.QualityScore(&r))
				}
			}
			fmt.Println("\n═══════════════════════════════════════")
		},
	}
}

// baruCmd 创建新报告
func baruCmd() *cobra.Command {
	var (
		unit, tajuk, tarikh, masa string
		objektif, aktiviti        string
		kekuatan, kelemahan       string
		penambahbaikan, refleksi  string
		disediakanOleh, jawatan   string
		gambar                    []string
		withDraft, submitAfter    bool
	)

	cmd := &cobra.Command{
		Use:   "baru",
		Short: "创建并保存一份新报告",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			c := core.Services.Lifecycle

			report := c.CreateNew()
			fmt.Printf("🆕 新报告 %s\n", shortID(report.ID))

			// 附件先经导入管线（方向校正、压缩、落地附件目录）
			imported, err := core.Exporters.Attachments.ImportAll(gambar)
			if err != nil {
				fmt.Printf("❌ 导入图片失败: %v\n", err)
				os.Exit(1)
			}

			_ = c.Apply(func(r *model.Report) {
				if unit != "" {
					r.Unit = model.Unit(unit)
				}
				r.TajukProgram = tajuk
				if tarikh != "" {
					service.ApplyTarikh(r, tarikh)
				}
				if masa != "" {
					r.Masa = masa
				}
				r.Objektif = objektif
				r.Aktiviti = aktiviti
				r.Kekuatan = kekuatan
				r.Kelemahan = kelemahan
				r.Penambahbaikan = penambahbaikan
				r.Refleksi = refleksi
				r.DisediakanOleh = disediakanOleh
				r.Jawatan = jawatan
				r.Gambar = imported
			})

			if withDraft {
				fmt.Println("🤖 AI 起草叙述中...")
				result := core.Services.Drafts.Draft(ctx, c.Current())
				_ = c.Apply(func(r *model.Report) {
					service.ApplyDraft(r, result)
				})
			}

			if err := c.Preview(); err != nil {
				if ve, ok := err.(*service.ValidationError); ok {
					fmt.Println("⚠️  Sila lengkapkan maklumat wajib berikut:")
					for _, f := range ve.Missing {
						fmt.Printf("  • %s\n", f)
					}
					// 校验不通过也保留草稿
					if saveErr := c.Save(ctx); saveErr == nil {
						fmt.Println("💾 已保存为 Draft")
					}
					os.Exit(1)
				}
				fmt.Printf("❌ 预览失败: %v\n", err)
				os.Exit(1)
			}

			if submitAfter {
				if err := c.Submit(ctx); err != nil {
					fmt.Printf("❌ 提交失败: %v\n", err)
					os.Exit(1)
				}
				core.Services.Drafts.IndexSubmitted(ctx, c.Current())
				fmt.Println("✅ Laporan berjaya dihantar ke sistem!")
				return
			}

			if err := c.Save(ctx); err != nil {
				fmt.Printf("❌ 保存失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("💾 Laporan disimpan sebagai Draft.")
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "", "单位 (Pentadbiran/Kurikulum/Kokurikulum/Hal Ehwal Murid/PIBG)")
	cmd.Flags().StringVar(&tajuk, "tajuk", "", "活动名称")
	cmd.Flags().StringVar(&tarikh, "tarikh", "", "日期 (YYYY-MM-DD)")
	cmd.Flags().StringVar(&masa, "masa", "", "时间")
	cmd.Flags().StringVar(&objektif, "objektif", "", "目标")
	cmd.Flags().StringVar(&aktiviti, "aktiviti", "", "活动内容")
	cmd.Flags().StringVar(&kekuatan, "kekuatan", "", "优点")
	cmd.Flags().StringVar(&kelemahan, "kelemahan", "", "不足")
	cmd.Flags().StringVar(&penambahbaikan, "penambahbaikan", "", "改进建议")
	cmd.Flags().StringVar(&refleksi, "refleksi", "", "反思")
	cmd.Flags().StringVar(&disediakanOleh, "oleh", "", "填报人")
	cmd.Flags().StringVar(&jawatan, "jawatan", "", "职务")
	cmd.Flags().StringSliceVar(&gambar, "gambar", nil, "活动照片路径（可多个）")
	cmd.Flags().BoolVar(&withDraft, "draf-ai", false, "用 AI 起草改进建议与反思")
	cmd.Flags().BoolVar(&submitAfter, "hantar", false, "创建后直接提交")

	return cmd
}

// simpanCmd 从 JSON 文件保存报告
func simpanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simpan [fail.json]",
		Short: "从 JSON 文件保存（或更新）一份报告",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			data, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Printf("❌ 读取文件失败: %v\n", err)
				os.Exit(1)
			}

			var report model.Report
			if err := json.Unmarshal(data, &report); err != nil {
				fmt.Printf("❌ 解析 JSON 失败: %v\n", err)
				os.Exit(1)
			}

			// 缺省字段补全：无 ID 视为新报告
			if report.ID == "" {
				fresh := model.NewReport()
				report.ID = fresh.ID
				if report.CreatedAt == 0 {
					report.CreatedAt = fresh.CreatedAt
				}
			}
			if report.Status == "" {
				report.Status = model.StatusDraft
			}
			if report.Hari == "" {
				report.Hari = service.HariForTarikh(report.Tarikh)
			}

			if err := core.Store.Upsert(ctx, &report); err != nil {
				fmt.Printf("❌ 保存失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("💾 已保存 %s (%s)\n", shortID(report.ID), report.TajukProgram)
		},
	}
}

// lihatCmd 查看单份报告
func lihatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lihat [id]",
		Short: "查看单份报告详情",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			report, err := core.Store.GetByID(ctx, args[0])
			if err != nil {
				fmt.Printf("❌ 读取失败: %v\n", err)
				os.Exit(1)
			}
			if report == nil {
				fmt.Println("❌ Laporan tidak ditemui")
				os.Exit(1)
			}
			printReport(report)
		},
	}
}

// drafCmd 为已存报告补 AI 叙述
func drafCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "draf-ai [id]",
		Short: "用 AI 为已存报告起草改进建议与反思",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			report, err := core.Store.GetByID(ctx, args[0])
			if err != nil || report == nil {
				fmt.Println("❌ Laporan tidak ditemui")
				os.Exit(1)
			}

			fmt.Println("🤖 AI 起草中...")
			result := core.Services.Drafts.Draft(ctx, report)
			service.ApplyDraft(report, result)

			if err := core.Store.Upsert(ctx, report); err != nil {
				fmt.Printf("❌ 保存失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("\n💡 Penambahbaikan\n%s\n", report.Penambahbaikan)
			fmt.Printf("\n🪞 Refleksi\n%s\n", report.Refleksi)
		},
	}
}

// eksportCmd 导出
func eksportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eksport",
		Short: "导出报告 (pdf/poster/excel)",
	}
	cmd.AddCommand(eksportPDFCmd())
	cmd.AddCommand(eksportPosterCmd())
	cmd.AddCommand(eksportExcelCmd())
	return cmd
}

func eksportPDFCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "pdf [id]",
		Short: "导出标准一页 PDF",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			report, err := core.Store.GetByID(ctx, args[0])
			if err != nil || report == nil {
				fmt.Println("❌ Laporan tidak ditemui")
				os.Exit(1)
			}

			dataURI, err := core.Exporters.PDF.RenderStandard(ctx, report)
			if err != nil {
				fmt.Printf("❌ Gagal menjana PDF: %v\n", err)
				os.Exit(1)
			}

			raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, export.PDFDataURIPrefix))
			if err != nil {
				fmt.Printf("❌ 解码 PDF 失败: %v\n", err)
				os.Exit(1)
			}

			if out == "" {
				out = filepath.Join(core.Cfg.Export.OutputDir, "OPR_"+report.Tarikh+".pdf")
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				fmt.Printf("❌ 创建输出目录失败: %v\n", err)
				os.Exit(1)
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				fmt.Printf("❌ 写入文件失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("📄 已导出: %s\n", out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "输出路径")
	return cmd
}

func eksportPosterCmd() *cobra.Command {
	var out string
	var transparent bool

	cmd := &cobra.Command{
		Use:   "poster [id]",
		Short: "导出海报 PNG",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			report, err := core.Store.GetByID(ctx, args[0])
			if err != nil || report == nil {
				fmt.Println("❌ Laporan tidak ditemui")
				os.Exit(1)
			}

			png, err := core.Exporters.Poster.RenderPoster(ctx, report, transparent)
			if err != nil {
				fmt.Printf("❌ 生成海报失败: %v\n", err)
				os.Exit(1)
			}

			if out == "" {
				out = filepath.Join(core.Cfg.Export.OutputDir, "Poster_"+report.Tarikh+".png")
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				fmt.Printf("❌ 创建输出目录失败: %v\n", err)
				os.Exit(1)
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				fmt.Printf("❌ 写入文件失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("🖼️ 已导出: %s\n", out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "输出路径")
	cmd.Flags().BoolVar(&transparent, "transparent", false, "透明背景")
	return cmd
}

func eksportExcelCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "excel",
		Short: "把全部报告归档为 Excel",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			reports, err := core.Store.ListAll(ctx)
			if err != nil {
				fmt.Printf("❌ 读取报告失败: %v\n", err)
				os.Exit(1)
			}

			if out == "" {
				out = filepath.Join(core.Cfg.Export.OutputDir, "rekod_opr.xlsx")
			}
			if err := core.Exporters.Excel.Export(reports, out); err != nil {
				fmt.Printf("❌ 导出失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("📗 已归档 %d 份报告: %s\n", len(reports), out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "输出路径")
	return cmd
}

// hantarCmd 提交已存报告
func hantarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hantar [id]",
		Short: "把已存报告提交到系统（生成 PDF 并上传）",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			if err := core.RequireUploadConfigured(); err != nil {
				fmt.Printf("⚠️  %v\n", err)
				fmt.Println("   请在 config.yaml 的 upload.script_url 配置端点")
				os.Exit(1)
			}

			c := core.Services.Lifecycle
			if err := c.ViewReport(ctx, args[0]); err != nil {
				fmt.Printf("❌ %v\n", err)
				os.Exit(1)
			}

			fmt.Println("📤 Menghantar laporan...")
			if err := c.Submit(ctx); err != nil {
				fmt.Printf("❌ %v\n", err)
				os.Exit(1)
			}
			core.Services.Drafts.IndexSubmitted(ctx, c.Current())
			fmt.Println("✅ Laporan berjaya dihantar ke sistem!")
		},
	}
}

// printReport 打印报告详情
func printReport(r *model.Report) {
	fmt.Printf("📄 %s\n", r.TajukProgram)
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  ID: %s\n", r.ID)
	fmt.Printf("  Unit: %s\n", r.Unit)
	fmt.Printf("  Tarikh: %s (%s) %s\n", r.Tarikh, r.Hari, r.Masa)
	fmt.Printf("  Status: %s | 质量分: %d/5\n", r.Status, service.QualityScore(r))
	fmt.Printf("  Disediakan oleh: %s (%s)\n", r.DisediakanOleh, r.Jawatan)
	section := func(title, body string) {
		if body == "" {
			body = "-"
		}
		fmt.Printf("\n%s\n%s\n", title, body)
	}
	section("🎯 Objektif", r.Objektif)
	section("📋 Aktiviti", r.Aktiviti)
	section("💪 Kekuatan", r.Kekuatan)
	section("⚠️ Kelemahan", r.Kelemahan)
	section("💡 Penambahbaikan", r.Penambahbaikan)
	section("🪞 Refleksi", r.Refleksi)
	if len(r.Gambar) > 0 {
		fmt.Printf("\n📷 Gambar (%d)\n", len(r.Gambar))
		for _, g := range r.Gambar {
			fmt.Printf("  • %s\n", g)
		}
	}
	fmt.Println("\n═══════════════════════════════════════")
}

// shortID 标识符前 8 位
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
