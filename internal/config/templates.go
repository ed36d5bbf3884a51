package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "client":
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

const serverTemplate = `name = "lunkwill"
listen_addr = "127.0.0.1:7400"
admin_addr = "127.0.0.1:7401"
cors_origins = ["http://localhost:3000"]
initial_buffer_bytes = 256
max_buffer_bytes = 10240
read_timeout = "15s"
write_timeout = "15s"
echo_ids = [1, 2]
log_level = "info"

[[rules]]
id = 1
variadic = true

[[rules]]
id = 2
lengths = [-1, 4]
`

const clientTemplate = `name = "lunkwill-client"
listen_addr = "127.0.0.1:7400"
admin_addr = ""
write_timeout = "5s"
read_timeout = "5s"
library_path = "./liblunkwill.so"
log_level = "warn"
`
