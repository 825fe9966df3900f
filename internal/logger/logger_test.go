package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetTestOutput(&buf)
	defer UnsetTestOutput()

	InitLogger("warn", false)
	Info("should be filtered")
	Warn("should appear", Fields{"step": 3})

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "should appear") || !strings.Contains(out, "step=3") {
		t.Errorf("warn message missing or missing fields: %s", out)
	}
}

func TestInitLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	SetTestOutput(&buf)
	defer UnsetTestOutput()

	InitLogger("debug", true)
	Debug("query finished", Fields{"status": "unsat"})

	out := buf.String()
	if !strings.Contains(out, `"status":"unsat"`) {
		t.Errorf("expected JSON output, got: %s", out)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetTestOutput(&buf)
	defer UnsetTestOutput()

	InitLogger("bogus", false)
	Debug("hidden")
	Infof("step %d done", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message logged at default level: %s", out)
	}
	if !strings.Contains(out, "step 1 done") {
		t.Errorf("info message missing: %s", out)
	}
}
