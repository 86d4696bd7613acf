package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeConfig writes content to a file named name inside a temp dir.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_KeyFile(t *testing.T) {
	content := `
# DMX input
[DMXPort]
Device=/dev/ttyUSB0
Speed=250000

[HTTP]
Port=8080
Password=se#cret
`
	store, err := Load(writeConfig(t, "dmx2c2ip.conf", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got, ok := store.String("DMXPort", "Device"); !ok || got != "/dev/ttyUSB0" {
		t.Errorf("String(DMXPort, Device) = %q, %v, want /dev/ttyUSB0, true", got, ok)
	}
	if got, ok := store.Int("DMXPort", "Speed"); !ok || got != 250000 {
		t.Errorf("Int(DMXPort, Speed) = %d, %v, want 250000, true", got, ok)
	}
	if got, ok := store.Int("HTTP", "Port"); !ok || got != 8080 {
		t.Errorf("Int(HTTP, Port) = %d, %v, want 8080, true", got, ok)
	}
	if got, _ := store.String("HTTP", "Password"); got != "se#cret" {
		t.Errorf("String(HTTP, Password) = %q, want se#cret", got)
	}

	want := []string{"DMXPort", "HTTP"}
	if got := store.Groups(); !reflect.DeepEqual(got, want) {
		t.Errorf("Groups() = %v, want %v", got, want)
	}
}

func TestLoad_YAML(t *testing.T) {
	content := `
DMXPort:
  Device: /dev/ttyACM0
  Speed: 115200
HTTP:
  Port: "9090"
  User: admin
  Nested:
    ignored: true
`
	store, err := Load(writeConfig(t, "dmx2c2ip.yaml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got, _ := store.String("DMXPort", "Device"); got != "/dev/ttyACM0" {
		t.Errorf("Device = %q, want /dev/ttyACM0", got)
	}
	if got, ok := store.Int("DMXPort", "Speed"); !ok || got != 115200 {
		t.Errorf("Speed = %d, %v, want 115200, true", got, ok)
	}
	if got, ok := store.Int("HTTP", "Port"); !ok || got != 9090 {
		t.Errorf("Port = %d, %v, want 9090, true", got, ok)
	}
	if _, ok := store.String("HTTP", "Nested"); ok {
		t.Error("nested mapping should be reported absent")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/dmx2c2ip.conf")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
	if !errors.Is(err, ErrLoad) {
		t.Errorf("Load() error = %v, want ErrLoad", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "key file line without delimiter",
			file:    "bad.conf",
			content: "[DMXPort]\nthis line has no delimiter\n",
		},
		{
			name:    "key before the first group",
			file:    "bad.conf",
			content: "Device=/dev/ttyUSB0\n[DMXPort]\nSpeed=250000\n",
		},
		{
			name:    "invalid yaml",
			file:    "bad.yaml",
			content: "DMXPort: [yaml: content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			if !errors.Is(err, ErrLoad) {
				t.Errorf("Load() error = %v, want ErrLoad", err)
			}
		})
	}
}

func TestStore_AbsentValues(t *testing.T) {
	store, err := Load(writeConfig(t, "dmx2c2ip.conf", "[DMXPort]\nSpeed=fast\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name  string
		group string
		key   string
	}{
		{"missing group", "HTTP", "Port"},
		{"missing key", "DMXPort", "Device"},
		{"type mismatch", "DMXPort", "Speed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := store.Int(tt.group, tt.key); ok {
				t.Errorf("Int(%s, %s) reported present", tt.group, tt.key)
			}
		})
	}
}

func TestStore_Nil(t *testing.T) {
	var store *Store

	if _, ok := store.String("DMXPort", "Device"); ok {
		t.Error("nil store String() reported present")
	}
	if _, ok := store.Int("DMXPort", "Speed"); ok {
		t.Error("nil store Int() reported present")
	}
	if store.Path() != "" {
		t.Errorf("nil store Path() = %q, want empty", store.Path())
	}
	if store.Groups() != nil {
		t.Errorf("nil store Groups() = %v, want nil", store.Groups())
	}
}

func TestInject(t *testing.T) {
	store, err := Load(writeConfig(t, "dmx2c2ip.conf", "[HTTP]\nPort=8081\nUser=op\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	port := 8080
	if !InjectInt(store, &port, "HTTP", "Port") {
		t.Error("InjectInt() = false for present key")
	}
	if port != 8081 {
		t.Errorf("port = %d, want 8081", port)
	}

	root := "/default"
	if InjectString(store, &root, "HTTP", "Root") {
		t.Error("InjectString() = true for absent key")
	}
	if root != "/default" {
		t.Errorf("root = %q, want unchanged /default", root)
	}

	var nilStore *Store
	user := "keep"
	InjectString(nilStore, &user, "HTTP", "User")
	if user != "keep" {
		t.Errorf("user = %q, want unchanged", user)
	}
}

func TestInject_CustomLookup(t *testing.T) {
	lookup := func(group, key string) (float64, bool) {
		if group == "Levels" && key == "Master" {
			return 0.75, true
		}
		return 0, false
	}

	master := 1.0
	Inject(&master, lookup, "Levels", "Master")
	if master != 0.75 {
		t.Errorf("master = %v, want 0.75", master)
	}
}

func TestLoggingSettings(t *testing.T) {
	defaults := LoggingSettings(nil)
	if defaults.Level != "info" || defaults.Format != "text" || defaults.Output != "stderr" {
		t.Errorf("LoggingSettings(nil) = %+v, want info/text/stderr", defaults)
	}

	store, err := Load(writeConfig(t, "dmx2c2ip.conf", "[Logging]\nLevel=debug\nFormat=json\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg := LoggingSettings(store)
	if cfg.Level != "debug" || cfg.Format != "json" || cfg.Output != "stderr" {
		t.Errorf("LoggingSettings() = %+v, want debug/json/stderr", cfg)
	}
}
