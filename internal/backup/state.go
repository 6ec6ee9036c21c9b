package backup

// State is a step of one account's backup attempt.
type State string

const (
	StateFetchCredentials State = "fetch_credentials"
	StateConfigure        State = "configure_endpoint"
	StateMaterialize      State = "materialize_secrets"
	StateLogin            State = "login"
	StateUnlock           State = "unlock"
	StateExport           State = "export"
	StateLogout           State = "logout"

	StateSuccess          State = "success"
	StateCredentialError  State = "credential_error"
	StateMaterializeError State = "materialize_error"
	StateLoginError       State = "login_error"
	StateUnlockError      State = "unlock_error"
	StateExportError      State = "export_error"
)

// Terminal reports whether no further step follows s.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateCredentialError, StateMaterializeError,
		StateLoginError, StateUnlockError, StateExportError:
		return true
	}
	return false
}
