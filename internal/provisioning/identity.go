package provisioning

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
	"github.com/nerrad567/shadowsync/internal/infrastructure/mqtt"
)

// DefaultRegion is used when neither the store nor the configuration name one.
const DefaultRegion = "us-east-1"

// macLength is the length of an EUI-48 hardware address.
const macLength = 6

// Identity is everything needed to open the shadow channel.
type Identity struct {
	ThingName  string
	Region     string
	ClientID   string
	BrokerHost string
	BrokerPort int

	CertPEM   []byte
	KeyPEM    []byte
	RootCAPEM []byte

	tlsConfig *tls.Config
}

// Address returns host:port of the broker.
func (id *Identity) Address() string {
	return net.JoinHostPort(id.BrokerHost, strconv.Itoa(id.BrokerPort))
}

// TLSConfig returns the client TLS configuration, or nil when TLS is off.
func (id *Identity) TLSConfig() *tls.Config {
	if id.tlsConfig == nil {
		return nil
	}
	return id.tlsConfig.Clone()
}

// Endpoint returns the MQTT endpoint for this identity.
func (id *Identity) Endpoint() mqtt.Endpoint {
	return mqtt.Endpoint{
		Host:     id.BrokerHost,
		Port:     id.BrokerPort,
		ClientID: id.ClientID,
		TLS:      id.TLSConfig(),
	}
}

// BrokerHostForRegion returns the shadow service data endpoint for region.
func BrokerHostForRegion(region string) string {
	return fmt.Sprintf("data.iot.%s.amazonaws.com", region)
}

// Load resolves the device identity from r, falling back to cfg.
//
// Every missing required value is named in a single ErrConfigurationMissing
// error. PEM material that does not parse yields ErrInvalidCredentials.
func Load(ctx context.Context, r Reader, cfg *config.Config) (*Identity, error) {
	return load(ctx, r, cfg, net.Interfaces)
}

func load(ctx context.Context, r Reader, cfg *config.Config, interfaces func() ([]net.Interface, error)) (*Identity, error) {
	var missing []string

	lookup := func(key, seed string) (string, error) {
		v, err := r.Get(ctx, key)
		switch {
		case err == nil && v != "":
			return v, nil
		case err == nil, errors.Is(err, ErrNotConfigured):
			return seed, nil
		default:
			return "", err
		}
	}

	id := &Identity{BrokerPort: cfg.MQTT.Broker.Port}

	var err error
	if id.ThingName, err = lookup(KeyThingName, cfg.Device.ThingName); err != nil {
		return nil, err
	}
	if id.ThingName == "" {
		missing = append(missing, KeyThingName)
	}

	if id.Region, err = lookup(KeyRegion, cfg.Device.Region); err != nil {
		return nil, err
	}
	if id.Region == "" {
		id.Region = DefaultRegion
	}

	id.BrokerHost = cfg.MQTT.Broker.Host
	if id.BrokerHost == "" {
		id.BrokerHost = BrokerHostForRegion(id.Region)
	}

	if id.ClientID, err = lookup(KeyClientID, cfg.Device.ClientID); err != nil {
		return nil, err
	}
	if id.ClientID == "" {
		ifaces, err := interfaces()
		if err != nil {
			return nil, fmt.Errorf("listing network interfaces: %w", err)
		}
		if id.ClientID, err = clientIDFromInterfaces(cfg.Device.ClientIDPrefix, ifaces); err != nil {
			missing = append(missing, "device mac address")
		}
	}

	pem := func(key, file string) ([]byte, error) {
		v, err := r.Get(ctx, key)
		if err == nil && v != "" {
			return []byte(v), nil
		}
		if err != nil && !errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
		if file == "" {
			return nil, nil
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfigurationMissing, key, err)
		}
		return data, nil
	}

	if id.CertPEM, err = pem(KeyCertPEM, cfg.Device.CertFile); err != nil {
		return nil, err
	}
	if id.KeyPEM, err = pem(KeyKeyPEM, cfg.Device.KeyFile); err != nil {
		return nil, err
	}
	if id.RootCAPEM, err = pem(KeyRootCAPEM, cfg.Device.RootCAFile); err != nil {
		return nil, err
	}

	if cfg.MQTT.Broker.TLS {
		if len(id.CertPEM) == 0 {
			missing = append(missing, KeyCertPEM)
		}
		if len(id.KeyPEM) == 0 {
			missing = append(missing, KeyKeyPEM)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}

	if cfg.MQTT.Broker.TLS {
		if id.tlsConfig, err = buildTLSConfig(id); err != nil {
			return nil, err
		}
	}

	return id, nil
}

func buildTLSConfig(id *Identity) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(id.CertPEM, id.KeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: client certificate: %w", ErrInvalidCredentials, err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ServerName:   id.BrokerHost,
		MinVersion:   tls.VersionTLS12,
	}

	// Without a configured root CA the system pool is used.
	if len(id.RootCAPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(id.RootCAPEM) {
			return nil, fmt.Errorf("%w: root CA contains no certificates", ErrInvalidCredentials)
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}

// clientIDFromInterfaces builds "<prefix>-<mac hex>" from the first
// non-loopback interface carrying an EUI-48 address.
func clientIDFromInterfaces(prefix string, ifaces []net.Interface) (string, error) {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) != macLength {
			continue
		}
		return prefix + "-" + hex.EncodeToString(iface.HardwareAddr), nil
	}
	return "", fmt.Errorf("%w: no interface with a hardware address", ErrConfigurationMissing)
}
