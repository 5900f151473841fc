// Package config loads shadowsync settings from YAML with SHADOWSYNC_*
// environment overrides.
//
// Load starts from Default, overlays the file, applies the environment and
// validates. Device identity (thing name, certificates) may be left empty
// here: values in the provisioning store win, and the provisioning package
// reports anything still missing when the device starts.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	log.Info("config loaded", "driver", cfg.Hardware.Driver)
//
// Keep MQTT passwords out of the file; set SHADOWSYNC_MQTT_PASSWORD instead.
package config
