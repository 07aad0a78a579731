package security

import "testing"

func TestValidateOutboundURLRejectsZonedIPv6ByDefault(t *testing.T) {
	err := ValidateOutboundURL("https://[fe80::1%25eth0]/", OutboundURLOptions{})
	if err == nil {
		t.Fatal("expected zone-literal IPv6 host to be rejected")
	}
}

func TestValidateOutboundURLAllowsZonedIPv6WhenLocalNetworksAllowed(t *testing.T) {
	err := ValidateOutboundURL("https://[fe80::1%25eth0]/", OutboundURLOptions{
		AllowLocalNetworks: true,
	})
	if err != nil {
		t.Fatalf("expected zone-literal IPv6 host to be allowed when local networks are enabled: %v", err)
	}
}

func TestValidateOutboundURLLANOptions(t *testing.T) {
	cases := []struct {
		url string
		ok  bool
	}{
		{"http://localhost:4567/api/v1/conversation", true},
		{"http://192.168.1.12:4567/api/v1/conversation", true},
		{"https://assistant.example.com/api/v1/conversation", true},
		{"ftp://192.168.1.12/conversation", false},
		{"http://224.0.0.1/conversation", false},
		{"http://0.0.0.0:4567/conversation", false},
		{"http:///conversation", false},
	}

	for _, tc := range cases {
		err := ValidateOutboundURL(tc.url, LANOptions())
		if tc.ok && err != nil {
			t.Fatalf("expected %q to validate: %v", tc.url, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("expected %q to be rejected", tc.url)
		}
	}
}
