package secret

// KeyringAPI 是 Store 使用的 keyring 操作；service 为 keyring_service 配置项，
// account 为 Key(id, field)。
type KeyringAPI interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
	Delete(service, account string) error
}

// osKeyring 委托给 zalando/go-keyring；各平台实现见 keyring_default.go / keyring_windows.go。
type osKeyring struct{}

var _ KeyringAPI = (*osKeyring)(nil)

func defaultKeyring() KeyringAPI {
	return &osKeyring{}
}
