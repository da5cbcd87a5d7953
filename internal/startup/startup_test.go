package startup

import (
	"reflect"
	"testing"

	"github.com/hearth-panel/hearth-ctl/internal/model"
)

func TestRender(t *testing.T) {
	env := map[string]string{"SERVER_JARFILE": "bungee.jar", "SERVER_MEMORY": "512"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"plain", "java -jar {{SERVER_JARFILE}}", "java -jar bungee.jar"},
		{"env prefix and spaces", "java -Xmx{{ env.SERVER_MEMORY }}M", "java -Xmx512M"},
		{"unknown left alone", "run {{MISSING}}", "run {{MISSING}}"},
		{"no placeholders", "./start.sh", "./start.sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, env); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("java -Xmx{{SERVER_MEMORY}}M -jar {{SERVER_JARFILE}} {{SERVER_MEMORY}}")
	want := []string{"SERVER_MEMORY", "SERVER_JARFILE"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Placeholders = %v, want %v", got, want)
	}
}

func TestArgv(t *testing.T) {
	server := &model.Server{
		Startup:      `java -Xmx{{SERVER_MEMORY}}M -jar {{SERVER_JARFILE}} --motd "{{MOTD}}" --port {{SERVER_PORT}}`,
		Limits:       model.Limits{Memory: 1024},
		AllocationID: 7,
		Allocations:  []model.Allocation{{ID: 7, IP: "10.0.0.1", Port: 25565}},
		Variables: []model.ServerVariable{
			{EnvVariable: "SERVER_JARFILE", Value: "server.jar"},
			{EnvVariable: "MOTD", Value: "hello world"},
		},
	}

	argv, err := Argv(server)
	if err != nil {
		t.Fatalf("Argv failed: %v", err)
	}
	want := []string{"java", "-Xmx1024M", "-jar", "server.jar", "--motd", "hello world", "--port", "25565"}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("Argv = %q, want %q", argv, want)
	}

	preview, err := Preview(server)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if preview != `java -Xmx1024M -jar server.jar --motd 'hello world' --port 25565` {
		t.Errorf("Preview = %q", preview)
	}
}

func TestCheck(t *testing.T) {
	if err := Check(`java -jar {{SERVER_JARFILE}}`, map[string]string{"SERVER_JARFILE": "a.jar"}); err != nil {
		t.Errorf("Check failed on valid template: %v", err)
	}
	if err := Check(`java -jar "{{SERVER_JARFILE}}`, nil); err == nil {
		t.Error("Check should reject unbalanced quotes")
	}
}
