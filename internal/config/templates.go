package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "daemon", "bboardd":
		return daemonTemplate, nil
	case "client", "bboardctl":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const daemonTemplate = `addr = ":7777"
admin_addr = "127.0.0.1:7778"
heartbeat = "30s"
max_line_bytes = 65536
log_level = "info"
cors_origins = ["http://localhost:3000"]

[board]
board_width = 200
board_height = 100
note_width = 20
note_height = 10
colors = ["red", "green", "blue", "yellow"]

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""
`

const clientTemplate = `addr = "127.0.0.1:7777"
timeout = "5s"

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""
server_name = ""
insecure_skip_verify = false
`
