package gologger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("aggie-auth", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("aggie-auth", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("aggie-auth", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestGoJobBridgeCompatibility(t *testing.T) {
	logger := &capturingLogger{id: "provider"}

	bridged := ToJobLogger(logger)
	if bridged == nil {
		t.Fatalf("expected go-job logger bridge")
	}
	bridged.Info("hello", "k", "v")

	captured := logger.lastInfo
	if captured.msg != "hello" {
		t.Fatalf("expected bridged message, got %q", captured.msg)
	}
	if captured.args[0] != "k" || captured.args[1] != "v" {
		t.Fatalf("expected bridged args, got %#v", captured.args)
	}
	if ToJobLogger(nil) != nil {
		t.Fatalf("expected nil logger to stay nil")
	}
}

func TestResolveForJobWithBaseLogger(t *testing.T) {
	var buf bytes.Buffer
	root := glog.NewLogger(glog.WithLoggerTypeJSON(), glog.WithLevel(glog.Debug), glog.WithWriter(&buf))

	_, resolved, jobProvider, jobLogger := ResolveForJob("purge", root, nil)
	if resolved == nil || jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected resolved logger and go-job bridges")
	}
	jobLogger.Info("purged expired verification credentials", "purged", 3)

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if record["msg"] != "purged expired verification credentials" {
		t.Fatalf("unexpected message %#v", record)
	}
	if record["logger"] != "purge" {
		t.Fatalf("expected named logger attribute, got %#v", record["logger"])
	}
	if record["purged"] != float64(3) {
		t.Fatalf("expected purged arg, got %#v", record["purged"])
	}
}

func TestBridgesKeepNil(t *testing.T) {
	if ToJobProvider(nil) != nil {
		t.Fatalf("expected nil provider to stay nil")
	}
	if ToJobLogger(nil) != nil {
		t.Fatalf("expected nil logger to stay nil")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
