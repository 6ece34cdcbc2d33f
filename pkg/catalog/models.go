package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// ArchiveRecord 是一个已关闭归档在关系型数据库中的投影
// 用于按创建者、时间检索归档，而不必逐个解包
type ArchiveRecord struct {
	// Name 是主键，取根属性 file_name
	Name string `gorm:"primaryKey;type:varchar(255)"`

	// Location 是归档在本地或对象存储中的位置
	Location string `gorm:"type:text"`

	Creator  string    `gorm:"index;type:varchar(255)"`
	FileTime time.Time `gorm:"index"`
	Version  string    `gorm:"type:varchar(32)"`

	// Attrs 保存完整的根属性
	Attrs datatypes.JSON

	GroupCount int
	FieldCount int
	Bytes      int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ArchiveRecord) TableName() string {
	return "archives"
}

// FieldRecord 是归档中的一个字段或链接
type FieldRecord struct {
	ID      uint   `gorm:"primaryKey"`
	Archive string `gorm:"index:idx_field_archive_path,unique;type:varchar(255);not null"`
	Path    string `gorm:"index:idx_field_archive_path,unique;type:varchar(1024);not null"`

	DType  string `gorm:"type:varchar(32)"`
	Format string `gorm:"type:varchar(32)"`
	Shape  datatypes.JSON
	Binary bool

	// Target 非空时该记录是链接
	Target string `gorm:"type:varchar(1024)"`
	Bytes  int64
}

func (FieldRecord) TableName() string {
	return "archive_fields"
}
