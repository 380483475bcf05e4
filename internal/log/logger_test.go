package log

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"
)

func TestWithComponentAnnotatesEntries(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("resource")
	l.Debug().Str(FieldPath, "config/form.xml").Msg("lookup")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if entry[FieldComponent] != "resource" {
		t.Errorf("component = %v, want resource", entry[FieldComponent])
	}
	if entry[FieldService] != "test" {
		t.Errorf("service = %v, want test", entry[FieldService])
	}
	if entry[FieldPath] != "config/form.xml" {
		t.Errorf("path = %v, want config/form.xml", entry[FieldPath])
	}
}

func TestConfigureRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := Base()
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info entry written at warn level: %q", buf.String())
	}
	l = Base()
	l.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Fatal("warn entry not written")
	}
}

func TestConfigureConcurrently(t *testing.T) {
	t.Cleanup(func() { Configure(Config{}) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Configure(Config{Level: "debug", Output: io.Discard})
			l := WithComponent("cache")
			l.Debug().Msg("configured")
		}()
	}
	wg.Wait()

	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	l := Base()
	l.Info().Msg("stamped")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	stamp, _ := entry["time"].(string)
	if _, err := time.Parse(time.RFC3339, stamp); err != nil {
		t.Errorf("time = %q, want RFC3339: %v", stamp, err)
	}
}
