package secret

import (
	stderrors "errors"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/zx06/vwbackup/internal/errors"
)

// Field 是一个账户在 keyring 中保存的字段名。
type Field string

const (
	FieldEmail          Field = "email"
	FieldPassword       Field = "bw_password"
	FieldExportPassword Field = "export_password"
	FieldServerURL      Field = "server_url"
)

// Fields 是一个完整配置的账户必须具备的全部字段，顺序固定。
var Fields = []Field{FieldEmail, FieldPassword, FieldExportPassword, FieldServerURL}

// Key 返回 keyring 中的 account 名：<identifier>_<field>。
func Key(id string, f Field) string {
	return id + "_" + string(f)
}

// Credentials 是一次备份所需的四个字段。
type Credentials struct {
	Email          string
	Password       string
	ExportPassword string
	ServerURL      string
}

func (c Credentials) get(f Field) string {
	switch f {
	case FieldEmail:
		return c.Email
	case FieldPassword:
		return c.Password
	case FieldExportPassword:
		return c.ExportPassword
	case FieldServerURL:
		return c.ServerURL
	}
	return ""
}

// Store 把账户字段映射到 OS keyring。
type Store struct {
	service string
	kr      KeyringAPI
}

// NewStore 创建 Store；kr 为 nil 时使用系统 keyring。
func NewStore(service string, kr KeyringAPI) *Store {
	if kr == nil {
		kr = defaultKeyring()
	}
	return &Store{service: service, kr: kr}
}

// Put 写入（或覆盖）一个字段。
func (s *Store) Put(id string, f Field, value string) error {
	if err := s.kr.Set(s.service, Key(id, f), value); err != nil {
		return errors.Wrap(errors.CodeSecretStoreError, "failed to store secret", map[string]any{"account": id, "field": string(f)}, err)
	}
	return nil
}

// Lookup 读取一个字段；不存在时返回空字符串和 nil。
func (s *Store) Lookup(id string, f Field) (string, error) {
	v, err := s.kr.Get(s.service, Key(id, f))
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", errors.Wrap(errors.CodeSecretStoreError, "failed to read secret", map[string]any{"account": id, "field": string(f)}, err)
	}
	return v, nil
}

// Clear 删除一个字段；不存在时不报错。
func (s *Store) Clear(id string, f Field) error {
	if err := s.kr.Delete(s.service, Key(id, f)); err != nil && !stderrors.Is(err, keyring.ErrNotFound) {
		return errors.Wrap(errors.CodeSecretStoreError, "failed to clear secret", map[string]any{"account": id, "field": string(f)}, err)
	}
	return nil
}

// ClearAll 删除账户的全部字段，遇到错误仍继续清理其余字段，返回第一个错误。
func (s *Store) ClearAll(id string) error {
	var first error
	for _, f := range Fields {
		if err := s.Clear(id, f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SaveCredentials 写入全部四个字段。
func (s *Store) SaveCredentials(id string, c Credentials) error {
	for _, f := range Fields {
		if err := s.Put(id, f, c.get(f)); err != nil {
			return err
		}
	}
	return nil
}

// Missing 返回为空或不存在的字段。
func (s *Store) Missing(id string) ([]Field, error) {
	var missing []Field
	for _, f := range Fields {
		v, err := s.Lookup(id, f)
		if err != nil {
			return nil, err
		}
		if v == "" {
			missing = append(missing, f)
		}
	}
	return missing, nil
}

// Credentials 读取全部字段；任一字段为空或不存在时返回 CodeSecretNotFound。
func (s *Store) Credentials(id string) (Credentials, error) {
	var c Credentials
	var missing []string
	for _, f := range Fields {
		v, err := s.Lookup(id, f)
		if err != nil {
			return Credentials{}, err
		}
		if v == "" {
			missing = append(missing, string(f))
			continue
		}
		switch f {
		case FieldEmail:
			c.Email = v
		case FieldPassword:
			c.Password = v
		case FieldExportPassword:
			c.ExportPassword = v
		case FieldServerURL:
			c.ServerURL = v
		}
	}
	if len(missing) > 0 {
		return Credentials{}, errors.New(errors.CodeSecretNotFound, "account is missing credentials",
			map[string]any{"account": id, "missing": strings.Join(missing, ",")})
	}
	return c, nil
}

// Windows cmdkey 在字符间插入 null 字节（UTF-16 遗留问题）
func stripNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
