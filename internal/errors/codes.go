package errors

// Code 是稳定错误码（字符串），供脚本与 cron 日志判断。
// 只增不改、不复用旧含义。
type Code string

const (
	// CLI
	CodeUsage Code = "VWB_USAGE"

	// Config / args
	CodeCfgNotFound      Code = "VWB_CFG_NOT_FOUND"
	CodeCfgInvalid       Code = "VWB_CFG_INVALID"
	CodeAccountNotFound  Code = "VWB_ACCOUNT_NOT_FOUND"
	CodeAccountInvalid   Code = "VWB_ACCOUNT_INVALID"
	CodeSecretNotFound   Code = "VWB_SECRET_NOT_FOUND"
	CodeSecretStoreError Code = "VWB_SECRET_STORE_FAILED"

	// Vendor client / backup
	CodeLoginFailed  Code = "VWB_LOGIN_FAILED"
	CodeUnlockFailed Code = "VWB_UNLOCK_FAILED"
	CodeExportFailed Code = "VWB_EXPORT_FAILED"
	CodeBackupFailed Code = "VWB_BACKUP_FAILED"

	// Crontab
	CodeScheduleFailed Code = "VWB_SCHEDULE_FAILED"

	// Registry file
	CodeRegistryIO Code = "VWB_REGISTRY_IO"

	// Interactive
	CodeAborted Code = "VWB_ABORTED"

	// Internal
	CodeInternal Code = "VWB_INTERNAL"
)

func AllCodes() []Code {
	return []Code{
		CodeUsage,
		CodeCfgNotFound,
		CodeCfgInvalid,
		CodeAccountNotFound,
		CodeAccountInvalid,
		CodeSecretNotFound,
		CodeSecretStoreError,
		CodeLoginFailed,
		CodeUnlockFailed,
		CodeExportFailed,
		CodeBackupFailed,
		CodeScheduleFailed,
		CodeRegistryIO,
		CodeAborted,
		CodeInternal,
	}
}
