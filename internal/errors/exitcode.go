package errors

// ExitCode 是进程退出码（稳定契约）。cron 只看退出码，所以每类失败保持可区分。
type ExitCode int

const (
	ExitOK ExitCode = 0

	// 1: 未知/缺失子命令，参数错误（同时打印 usage）
	ExitUsage ExitCode = 1

	// 2: 配置或账户参数错误
	ExitConfig ExitCode = 2

	// 3: 备份失败（凭据缺失、登录、解锁、导出）
	ExitBackup ExitCode = 3

	// 4: crontab 不可用或安装失败
	ExitSchedule ExitCode = 4

	// 5: 账户列表文件读写失败
	ExitRegistry ExitCode = 5

	// 6: 用户取消
	ExitAborted ExitCode = 6

	// 10: 内部错误
	ExitInternal ExitCode = 10
)

func ExitCodeFor(code Code) ExitCode {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeCfgNotFound, CodeCfgInvalid, CodeAccountNotFound, CodeAccountInvalid:
		return ExitConfig
	case CodeSecretNotFound, CodeLoginFailed, CodeUnlockFailed, CodeExportFailed, CodeBackupFailed:
		return ExitBackup
	case CodeScheduleFailed:
		return ExitSchedule
	case CodeRegistryIO:
		return ExitRegistry
	case CodeAborted:
		return ExitAborted
	case CodeSecretStoreError, CodeInternal:
		fallthrough
	default:
		return ExitInternal
	}
}
