// Package config provides configuration types and loading for hearth-ctl.
//
// # Configuration Sources
//
// Settings are layered, later sources winning:
//
//  1. Built-in defaults (Default)
//  2. /etc/hearth-ctl/config.toml, or the file passed with --config
//  3. A .env file in the working directory
//  4. HEARTH_* environment variables
//
// # File Format
//
//	[database]
//	path = "/var/lib/hearth-ctl/panel.db"
//
//	[daemon]
//	timeout = "30s"
//
//	[allocations]
//	auto_create = true
//	client_enabled = true
//	range_start = 25565
//	range_end = 25665
//
//	[activity]
//	dir = "/var/lib/hearth-ctl/activity"
//	nats_url = "nats://127.0.0.1:4222"
//	subject = "hearth.activity"
//
//	[api]
//	listen = "127.0.0.1:8080"
//	token = "..."
//
// # Paths
//
// Paths holds the directories hearth-ctl reads and writes. EggFile resolves
// egg file names with securejoin so a name cannot leave EggsDir.
package config
