package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// 分页默认值
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// 延期月数范围
const (
	MinExtendMonths = 1
	MaxExtendMonths = 12
)
