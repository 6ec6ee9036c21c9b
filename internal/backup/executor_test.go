package backup

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/zx06/vwbackup/internal/errors"
	"github.com/zx06/vwbackup/internal/log"
	"github.com/zx06/vwbackup/internal/registry"
	"github.com/zx06/vwbackup/internal/secret"
)

// fakeClient 记录 bw 调用，并在调用时检查临时密码文件的状态
type fakeClient struct {
	t *testing.T

	failConfigure bool
	failLogin     map[string]bool
	failUnlock    map[string]bool
	failExport    map[string]bool
	panicOnLogin  bool

	current    string
	seenFiles  []string
	logouts    []string
	exports    int
	configured []string
}

func newFakeClient(t *testing.T) *fakeClient {
	return &fakeClient{
		t:          t,
		failLogin:  map[string]bool{},
		failUnlock: map[string]bool{},
		failExport: map[string]bool{},
	}
}

func (f *fakeClient) checkSecretFile(path, want string) {
	f.t.Helper()
	f.seenFiles = append(f.seenFiles, path)
	info, err := os.Stat(path)
	if err != nil {
		f.t.Fatalf("secret file %s missing during call: %v", path, err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		f.t.Errorf("secret file %s perm=%o want 600", path, perm)
	}
	b, _ := os.ReadFile(path)
	if string(b) != want {
		f.t.Errorf("secret file %s content=%q want %q", path, b, want)
	}
}

func (f *fakeClient) Configure(_ context.Context, url string) error {
	f.configured = append(f.configured, url)
	if f.failConfigure {
		return stderrors.New("config failed")
	}
	return nil
}

func (f *fakeClient) Login(_ context.Context, email, passwordFile string) (string, error) {
	if f.panicOnLogin {
		panic("bw crashed")
	}
	f.current = email
	f.checkSecretFile(passwordFile, "pw-"+email)
	if f.failLogin[email] {
		return "", errors.New(errors.CodeLoginFailed, "bw login failed", nil)
	}
	return "sess-" + email, nil
}

func (f *fakeClient) Unlock(_ context.Context, passwordFile, session string) (string, error) {
	f.checkSecretFile(passwordFile, "pw-"+f.current)
	if session != "sess-"+f.current {
		f.t.Errorf("unlock got session %q", session)
	}
	if f.failUnlock[f.current] {
		return "", errors.New(errors.CodeUnlockFailed, "bw unlock failed", nil)
	}
	return "unlock-" + f.current, nil
}

func (f *fakeClient) Export(_ context.Context, session, exportPasswordFile string, w io.Writer) error {
	f.checkSecretFile(exportPasswordFile, "exp-"+f.current)
	if session != "unlock-"+f.current {
		f.t.Errorf("export got session %q", session)
	}
	f.exports++
	if f.failExport[f.current] {
		_, _ = io.WriteString(w, `{"partial`)
		return errors.New(errors.CodeExportFailed, "bw export failed", nil)
	}
	_, err := fmt.Fprintf(w, `{"account":%q,"n":%d}`, f.current, f.exports)
	return err
}

func (f *fakeClient) Logout(_ context.Context, session string) error {
	f.logouts = append(f.logouts, session)
	return nil
}

type testEnv struct {
	exec     *Executor
	client   *fakeClient
	reg      *registry.Registry
	store    *secret.Store
	logBuf   *bytes.Buffer
	exportTo string
	tempDir  string
}

func newTestEnv(t *testing.T, ids ...string) *testEnv {
	t.Helper()
	keyring.MockInit()
	root := t.TempDir()
	env := &testEnv{
		client:   newFakeClient(t),
		reg:      registry.New(filepath.Join(root, "accounts.txt")),
		store:    secret.NewStore("vwbackup-test", nil),
		logBuf:   &bytes.Buffer{},
		exportTo: filepath.Join(root, "exports"),
		tempDir:  filepath.Join(root, "tmp"),
	}
	for _, id := range ids {
		env.addAccount(t, id)
	}
	env.exec = &Executor{
		Accounts:  env.reg,
		Secrets:   env.store,
		Client:    env.client,
		ExportDir: env.exportTo,
		TempDir:   env.tempDir,
		Prefix:    "vaultwarden-backup",
		Logger:    log.New(env.logBuf),
		Now:       func() time.Time { return time.Date(2024, 3, 14, 9, 5, 42, 0, time.UTC) },
	}
	return env
}

func (env *testEnv) addAccount(t *testing.T, id string) {
	t.Helper()
	if err := env.reg.Add(id); err != nil {
		t.Fatal(err)
	}
	err := env.store.SaveCredentials(id, secret.Credentials{
		Email:          id,
		Password:       "pw-" + id,
		ExportPassword: "exp-" + id,
		ServerURL:      "https://vault.example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) assertNoTransientFiles(t *testing.T) {
	t.Helper()
	for _, p := range env.client.seenFiles {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("transient file %s survived the attempt (stat err=%v)", p, err)
		}
	}
	entries, err := os.ReadDir(env.tempDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not empty: %v", entries)
	}
}

func states(r Report) []State {
	out := make([]State, 0, len(r.Results))
	for _, res := range r.Results {
		out = append(out, res.State)
	}
	return out
}

func TestRun_BatchResilience(t *testing.T) {
	env := newTestEnv(t, "one@example.com", "two@example.com", "three@example.com")
	if err := env.store.Clear("two@example.com", secret.FieldExportPassword); err != nil {
		t.Fatal(err)
	}

	report, err := env.exec.Run(context.Background(), AllAccounts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []State{StateSuccess, StateCredentialError, StateSuccess}
	got := states(report)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("states=%v want %v", got, want)
	}
	if report.Failed() != 1 {
		t.Fatalf("Failed()=%d want 1", report.Failed())
	}
	if !errors.HasCode(report.Results[1].Err(), errors.CodeSecretNotFound) {
		t.Fatalf("account 2 error=%v", report.Results[1].Err())
	}
	for _, i := range []int{0, 2} {
		if _, err := os.Stat(report.Results[i].Artifact); err != nil {
			t.Errorf("artifact for %s missing: %v", report.Results[i].Account, err)
		}
	}
	if !bytes.Contains(env.logBuf.Bytes(), []byte("account=two@example.com")) ||
		!bytes.Contains(env.logBuf.Bytes(), []byte("state=credential_error")) {
		t.Errorf("credential error not logged: %s", env.logBuf.String())
	}
	env.assertNoTransientFiles(t)
}

func TestRun_EmptyTargetMeansAll(t *testing.T) {
	env := newTestEnv(t, "a@example.com", "b@example.com")
	report, err := env.exec.Run(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 2 || report.Results[0].Account != "a@example.com" || report.Results[1].Account != "b@example.com" {
		t.Fatalf("results=%+v", report.Results)
	}
	if report.RunID == "" {
		t.Error("expected run id")
	}
}

func TestRun_SingleTarget(t *testing.T) {
	env := newTestEnv(t, "a@example.com", "b@example.com")
	report, err := env.exec.Run(context.Background(), "b@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 1 || report.Results[0].Account != "b@example.com" || !report.Results[0].OK() {
		t.Fatalf("results=%+v", report.Results)
	}
}

func TestRun_ArtifactNameAndOverwrite(t *testing.T) {
	env := newTestEnv(t, "alice@example.com")
	ctx := context.Background()

	first, err := env.exec.Run(ctx, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(env.exportTo, "vaultwarden-backup-alice@example.com-03-14-2024-09-05.json")
	if first.Results[0].Artifact != want {
		t.Fatalf("artifact=%s want %s", first.Results[0].Artifact, want)
	}

	second, err := env.exec.Run(ctx, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if second.Results[0].Artifact != want {
		t.Fatalf("second artifact=%s want %s", second.Results[0].Artifact, want)
	}
	b, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"account":"alice@example.com","n":2}` {
		t.Fatalf("artifact not overwritten by second export: %s", b)
	}
	info, _ := os.Stat(want)
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("artifact perm=%o want 600", perm)
	}
}

func TestRun_CleanupOnEveryExitPath(t *testing.T) {
	cases := []struct {
		name       string
		setup      func(env *testEnv)
		wantState  State
		wantLogout bool
	}{
		{"success", func(*testEnv) {}, StateSuccess, true},
		{"login fails", func(env *testEnv) { env.client.failLogin["x@example.com"] = true }, StateLoginError, false},
		{"unlock fails", func(env *testEnv) { env.client.failUnlock["x@example.com"] = true }, StateUnlockError, true},
		{"export fails", func(env *testEnv) { env.client.failExport["x@example.com"] = true }, StateExportError, true},
		{"configure fails", func(env *testEnv) { env.client.failConfigure = true }, StateSuccess, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, "x@example.com")
			tc.setup(env)

			report, err := env.exec.Run(context.Background(), AllAccounts)
			if err != nil {
				t.Fatal(err)
			}
			if got := report.Results[0].State; got != tc.wantState {
				t.Fatalf("state=%s want %s (err=%v)", got, tc.wantState, report.Results[0].Err())
			}
			if len(env.client.seenFiles) == 0 {
				t.Fatal("client never saw a secret file")
			}
			env.assertNoTransientFiles(t)
			if got := len(env.client.logouts) > 0; got != tc.wantLogout {
				t.Errorf("logout called=%v want %v", got, tc.wantLogout)
			}
		})
	}
}

func TestRun_NilLogger(t *testing.T) {
	env := newTestEnv(t, "x@example.com")
	env.exec.Logger = nil
	report, err := env.exec.Run(context.Background(), AllAccounts)
	if err != nil {
		t.Fatal(err)
	}
	if got := report.Results[0].State; got != StateSuccess {
		t.Fatalf("state=%s want %s", got, StateSuccess)
	}
	if env.logBuf.Len() != 0 {
		t.Fatalf("unexpected log output: %q", env.logBuf.String())
	}
	env.assertNoTransientFiles(t)
}

func TestRun_FailedExportLeavesNoPartialArtifact(t *testing.T) {
	env := newTestEnv(t, "x@example.com")
	env.client.failExport["x@example.com"] = true
	if _, err := env.exec.Run(context.Background(), AllAccounts); err != nil {
		t.Fatal(err)
	}
	matches, err := ListArtifacts(env.exportTo, "vaultwarden-backup")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("partial artifacts left: %v", matches)
	}
}

func TestRun_CleanupOnPanic(t *testing.T) {
	env := newTestEnv(t, "x@example.com")
	env.client.panicOnLogin = true

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = env.exec.Run(context.Background(), AllAccounts)
	}()
	env.assertNoTransientFiles(t)
}

func TestRun_RegistryErrorIsReturned(t *testing.T) {
	env := newTestEnv(t)
	env.exec.Accounts = registry.New(t.TempDir()) // a directory cannot be read as a file
	_, err := env.exec.Run(context.Background(), AllAccounts)
	if !errors.HasCode(err, errors.CodeRegistryIO) {
		t.Fatalf("expected %s, got %v", errors.CodeRegistryIO, err)
	}
}

func TestRun_UnregisteredTargetIsCredentialError(t *testing.T) {
	env := newTestEnv(t)
	report, err := env.exec.Run(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if report.Results[0].State != StateCredentialError {
		t.Fatalf("state=%s", report.Results[0].State)
	}
	env.assertNoTransientFiles(t)
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) OnStart(id string) { o.events = append(o.events, "start:"+id) }
func (o *recordingObserver) OnFinish(r Result) { o.events = append(o.events, "finish:"+r.Account+":"+string(r.State)) }

func TestRun_ObserverOrder(t *testing.T) {
	env := newTestEnv(t, "a@example.com", "b@example.com")
	env.client.failLogin["b@example.com"] = true
	obs := &recordingObserver{}
	env.exec.Observer = obs

	if _, err := env.exec.Run(context.Background(), AllAccounts); err != nil {
		t.Fatal(err)
	}
	want := []string{"start:a@example.com", "finish:a@example.com:success", "start:b@example.com", "finish:b@example.com:login_error"}
	if fmt.Sprint(obs.events) != fmt.Sprint(want) {
		t.Fatalf("events=%v want %v", obs.events, want)
	}
}

func TestRun_SecretsNeverLogged(t *testing.T) {
	env := newTestEnv(t, "a@example.com")
	env.client.failExport["a@example.com"] = true
	if _, err := env.exec.Run(context.Background(), AllAccounts); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"pw-a@example.com", "exp-a@example.com", "sess-a@example.com"} {
		if bytes.Contains(env.logBuf.Bytes(), []byte(s)) {
			t.Errorf("log contains secret %q: %s", s, env.logBuf.String())
		}
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := []State{StateSuccess, StateCredentialError, StateMaterializeError, StateLoginError, StateUnlockError, StateExportError}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateFetchCredentials, StateConfigure, StateMaterialize, StateLogin, StateUnlock, StateExport, StateLogout} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestReport_ToTableData(t *testing.T) {
	r := Report{Results: []Result{
		{Account: "alice@example.com", State: StateSuccess, Artifact: "/x/a.json", DurationMS: 12},
		{Account: "bob@example.com", State: StateCredentialError, Error: "missing secrets"},
	}}
	cols, rows, ok := r.ToTableData()
	if !ok || len(cols) != 5 || len(rows) != 2 {
		t.Fatalf("cols=%v rows=%v ok=%v", cols, rows, ok)
	}
	if rows[1]["state"] != "credential_error" || rows[1]["error"] != "missing secrets" {
		t.Fatalf("row=%v", rows[1])
	}
}
