package utils

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bogdanfinn/fhttp/http2"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	tls "github.com/bogdanfinn/utls"
	log "github.com/sirupsen/logrus"
)

const DefaultProfile = "chrome_133"

type ClientConfig struct {
	Proxy          string
	TimeoutSeconds int
	Profile        string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{TimeoutSeconds: 15, Profile: DefaultProfile}
}

var clientProfiles = map[string]func() (profiles.ClientProfile, error){
	"chrome_133": chrome133Profile,
	"chrome_124": func() (profiles.ClientProfile, error) { return profiles.Chrome_124, nil },
	"chrome_120": func() (profiles.ClientProfile, error) { return profiles.Chrome_120, nil },
	"chrome_117": func() (profiles.ClientProfile, error) { return profiles.Chrome_117, nil },
}

func ProfileNames() []string {
	names := make([]string, 0, len(clientProfiles))
	for name := range clientProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chrome 133 hello built from its ja3
func chrome133Profile() (profiles.ClientProfile, error) {
	ja3 := "771,4865-4866-4867-49195-49199-49196-49200-52393-52392-49171-49172-156-157-47-53,11-10-51-43-16-17613-0-45-27-65037-18-5-13-35-23-65281-41,4588-29-23-24,0"

	signatureAlgorithms := []string{
		"ECDSAWithP256AndSHA256",
		"PSSWithSHA256",
		"PKCS1WithSHA256",
		"ECDSAWithP384AndSHA384",
		"PSSWithSHA384",
		"PKCS1WithSHA384",
		"PSSWithSHA512",
		"PKCS1WithSHA512",
	}
	echCipherSuites := []tls_client.CandidateCipherSuites{
		{KdfId: "HKDF_SHA256", AeadId: "AEAD_AES_128_GCM"},
		{KdfId: "HKDF_SHA256", AeadId: "AEAD_AES_256_GCM"},
		{KdfId: "HKDF_SHA256", AeadId: "AEAD_CHACHA20_POLY1305"},
	}

	specFactory, err := tls_client.GetSpecFactoryFromJa3String(
		ja3,
		signatureAlgorithms,
		signatureAlgorithms,
		[]string{"GREASE", "1.3", "1.2"},
		[]string{"GREASE", "X25519", "secp256r1", "secp384r1"},
		[]string{"h2", "http/1.1"},
		[]string{"h2"},
		echCipherSuites,
		[]uint16{128, 160, 192, 224},
		"brotli",
	)
	if err != nil {
		return profiles.ClientProfile{}, fmt.Errorf("failed to build chrome 133 spec - %w", err)
	}

	return profiles.NewClientProfile(
		tls.ClientHelloID{
			Client:      "Chrome",
			Version:     "133",
			SpecFactory: specFactory,
		},
		map[http2.SettingID]uint32{
			http2.SettingHeaderTableSize:   65536,
			http2.SettingEnablePush:        0,
			http2.SettingInitialWindowSize: 6291456,
			http2.SettingMaxHeaderListSize: 262144,
		},
		[]http2.SettingID{
			http2.SettingHeaderTableSize,
			http2.SettingEnablePush,
			http2.SettingInitialWindowSize,
			http2.SettingMaxHeaderListSize,
		},
		[]string{":method", ":authority", ":scheme", ":path"},
		uint32(15663105),
		nil,
		nil,
	), nil
}

func NewClient(cfg ClientConfig) (tls_client.HttpClient, error) {
	name := cfg.Profile
	if name == "" {
		name = DefaultProfile
	}
	build, ok := clientProfiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown tls profile %q (known: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	profile, err := build()
	if err != nil {
		return nil, err
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultClientConfig().TimeoutSeconds
	}

	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(timeout),
		tls_client.WithClientProfile(profile),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
		tls_client.WithRandomTLSExtensionOrder(),
	}
	if cfg.Proxy != "" {
		options = append(options, tls_client.WithProxyUrl(cfg.Proxy))
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		log.Errorf("Failed to create client: %v", err)
		return nil, fmt.Errorf("failed to create client - %w", err)
	}
	return client, nil
}

// Process-wide client shared by all sessions
var (
	sharedMu     sync.Mutex
	sharedConfig = DefaultClientConfig()
	sharedClient tls_client.HttpClient
)

// ConfigureClient sets the config used for the shared client and drops any
// client built with the previous one.
func ConfigureClient(cfg ClientConfig) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	sharedConfig = cfg
	sharedClient = nil
}

func SharedClient() (tls_client.HttpClient, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedClient != nil {
		return sharedClient, nil
	}

	client, err := NewClient(sharedConfig)
	if err != nil {
		return nil, err
	}
	sharedClient = client
	return sharedClient, nil
}
