/*
Package config loads joyride's configuration.

Sources, lowest priority first:

 1. Default()
 2. a YAML file (JSON is valid YAML)
 3. dotenv files, loaded into the environment with godotenv
 4. JOYRIDE_* environment variables, e.g. JOYRIDE_DNS_PORT=5353

Durations use Go syntax ("30s", "1m"). List variables such as
JOYRIDE_DNS_UPSTREAM are comma-separated.

	cfg, err := config.Load("/etc/joyride/joyride.yaml")
	if err != nil {
		return err
	}

Validate reports every problem at once; sections that are disabled are not
checked.
*/
package config
