package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/dronelink/cmd"
)

func main() {
	app := &cli.App{
		Name:   "dronelink",
		Usage:  "ground station link for MAVLink style devices",
		Action: cmd.LinkCommand,
		Commands: []*cli.Command{
			{
				Name:   "token",
				Usage:  "generate a control API token",
				Action: cmd.TokenCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-jwt-secret",
						EnvVars: []string{"API_JWT_SECRET"},
					},
					&cli.StringFlag{
						Name:  "subject",
						Value: "operator",
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Value: 30 * 24 * time.Hour,
					},
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "link-url",
				EnvVars:  []string{"LINK_URL"},
				Usage:    "websocket url of the device link, like ws://127.0.0.1:5760/link",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "link-insecure",
				EnvVars: []string{"LINK_INSECURE"},
				Value:   false,
			},
			&cli.DurationFlag{
				Name:    "link-ping-interval",
				EnvVars: []string{"LINK_PING_INTERVAL"},
				Value:   4 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "reconnect-delay",
				EnvVars: []string{"RECONNECT_DELAY"},
				Value:   5 * time.Second,
			},
			&cli.StringFlag{
				Name:    "mqtt-host",
				EnvVars: []string{"MQTT_HOST"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-pass",
				EnvVars: []string{"MQTT_PASS"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-user",
				EnvVars: []string{"MQTT_USER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-topic-prefix",
				EnvVars: []string{"MQTT_TOPIC_PREFIX"},
				Value:   "dronelink",
			},
			&cli.StringFlag{
				Name:    "database-url",
				EnvVars: []string{"DATABASE_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "migrations-folder",
				EnvVars: []string{"MIGRATIONS_FOLDER"},
				Value:   "migrations",
			},
			&cli.DurationFlag{
				Name:    "event-retention",
				EnvVars: []string{"EVENT_RETENTION"},
				Value:   8 * 24 * time.Hour,
			},
			&cli.StringFlag{
				Name:    "http-addr",
				EnvVars: []string{"HTTP_ADDR"},
				Value:   "0.0.0.0:8000",
			},
			&cli.StringFlag{
				Name:    "api-token-hash",
				EnvVars: []string{"API_TOKEN_HASH"},
				Usage:   "bcrypt hash of the control API bearer token, see the token command",
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "api-jwt-secret",
				EnvVars: []string{"API_JWT_SECRET"},
				Usage:   "HS256 secret for control API bearer tokens",
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
