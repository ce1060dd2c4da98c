package schema

// LocalEntry 本地键值存储行
// 整个报告集合序列化为 JSON 后写入固定键，一次写入一整份，
// 不存在可被读者观察到的部分写入状态
type LocalEntry struct {
	Key   string `gorm:"primaryKey;size:100" json:"key"`
	Value []byte `gorm:"type:blob" json:"value"`
}

// TableName 指定表名
func (LocalEntry) TableName() string {
	return "local_store"
}
