package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/pushnot/internal/config"
	"github.com/nao1215/pushnot/pkg/middleware"
)

// execute はpushctlをargsで実行し、標準出力とエラーを返す。
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeysGenerate(t *testing.T) {
	out, err := execute(t, "keys", "generate")
	if err != nil {
		t.Fatalf("keys generate に失敗: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("出力行数 = %d, want 2 (out=%q)", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], config.EnvVAPIDPublicKey+"=") {
		t.Errorf("1行目 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], config.EnvVAPIDPrivateKey+"=") {
		t.Errorf("2行目 = %q", lines[1])
	}
}

func TestToken(t *testing.T) {
	out, err := execute(t, "token", "--secret", "s3cret", "--operator", "alice")
	if err != nil {
		t.Fatalf("token に失敗: %v", err)
	}

	claims, err := middleware.VerifyTriggerToken("s3cret", "Bearer "+strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("発行したトークンの検証に失敗: %v", err)
	}
	if claims.Operator != "alice" {
		t.Errorf("Operator = %q, want %q", claims.Operator, "alice")
	}
}

func TestToken_MissingSecret(t *testing.T) {
	old := lookupEnv
	lookupEnv = func(string) string { return "" }
	t.Cleanup(func() { lookupEnv = old })

	if _, err := execute(t, "token"); err == nil {
		t.Fatal("シークレットが無いのにエラーになりませんでした")
	}
}

// recordingServer は受け取ったsendTestを記録するテスト用サーバー。
type recordingServer struct {
	mu            sync.Mutex
	authorization string
	payload       json.RawMessage
}

func (s *recordingServer) start(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]string{"publicKey": "BPub"})
			return
		}
		var req struct {
			Payload json.RawMessage `json:"payload"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		s.authorization = r.Header.Get("Authorization")
		s.payload = req.Payload
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]int{"sent": 3})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestPublicKey(t *testing.T) {
	rs := &recordingServer{}
	url := rs.start(t)

	out, err := execute(t, "public-key", "--server", url)
	if err != nil {
		t.Fatalf("public-key に失敗: %v", err)
	}
	if strings.TrimSpace(out) != "BPub" {
		t.Errorf("出力 = %q, want %q", out, "BPub")
	}
}

func TestSend(t *testing.T) {
	old := lookupEnv
	lookupEnv = func(string) string { return "" }
	t.Cleanup(func() { lookupEnv = old })

	t.Run("タイトルとURLを含む通知を送る", func(t *testing.T) {
		rs := &recordingServer{}
		url := rs.start(t)

		out, err := execute(t, "send", "--server", url, "--title", "Hi", "--url", "/inbox", "--secret", "s3cret")
		if err != nil {
			t.Fatalf("send に失敗: %v", err)
		}
		if !strings.Contains(out, "3件") {
			t.Errorf("出力 = %q, want 3件を含む", out)
		}

		rs.mu.Lock()
		defer rs.mu.Unlock()
		var payload map[string]any
		if err := json.Unmarshal(rs.payload, &payload); err != nil {
			t.Fatalf("ペイロードのパースに失敗: %v", err)
		}
		if payload["title"] != "Hi" {
			t.Errorf("title = %v, want Hi", payload["title"])
		}
		data, _ := payload["data"].(map[string]any)
		if data["url"] != "/inbox" {
			t.Errorf("data.url = %v, want /inbox", data["url"])
		}
		if _, err := middleware.VerifyTriggerToken("s3cret", rs.authorization); err != nil {
			t.Errorf("Authorizationヘッダーの検証に失敗: %v", err)
		}
	})

	t.Run("何も指定しなければペイロードを送らない", func(t *testing.T) {
		rs := &recordingServer{}
		url := rs.start(t)

		if _, err := execute(t, "send", "--server", url); err != nil {
			t.Fatalf("send に失敗: %v", err)
		}
		rs.mu.Lock()
		defer rs.mu.Unlock()
		if len(rs.payload) != 0 {
			t.Errorf("payload = %s, want 空", rs.payload)
		}
		if rs.authorization != "" {
			t.Errorf("Authorization = %q, want 空", rs.authorization)
		}
	})
}

func TestConfigCheck(t *testing.T) {
	for _, key := range []string{config.EnvPort, config.EnvStorePath, config.EnvDeliveryUrgency, config.EnvDeliveryTTL} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "push.yaml")
	content := `
port: "9000"
store:
  path: /tmp/push.db
delivery:
  timeout: 5s
  ttl: 30
  urgency: high
  concurrency: 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("設定ファイルの書き込みに失敗: %v", err)
	}

	out, err := execute(t, "config", "check", "--file", path)
	if err != nil {
		t.Fatalf("config check に失敗: %v", err)
	}
	for _, want := range []string{"設定は有効です", "9000", "/tmp/push.db", "urgency=high"} {
		if !strings.Contains(out, want) {
			t.Errorf("出力に %q が含まれていません (out=%q)", want, out)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version に失敗: %v", err)
	}
	if !strings.Contains(out, "pushctl dev") {
		t.Errorf("出力 = %q", out)
	}
}
