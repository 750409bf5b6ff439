package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expiry  int64
		expired bool
	}{
		{"future expiry", now.Add(time.Hour).UnixMilli(), false},
		{"past expiry", now.Add(-time.Hour).UnixMilli(), true},
		{"exactly now", now.UnixMilli(), false},
		{"zero expiry", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{Expiry: tt.expiry}
			assert.Equal(t, tt.expired, s.Expired(now))
		})
	}
}

func TestProviderStoreEqual(t *testing.T) {
	base := ProviderStore{
		Accounts:       []string{"0xaaa", "0xbbb"},
		OrganizationID: "org-1",
	}

	tests := []struct {
		name  string
		other ProviderStore
		equal bool
	}{
		{"identical", ProviderStore{Accounts: []string{"0xaaa", "0xbbb"}, OrganizationID: "org-1"}, true},
		{"different order", ProviderStore{Accounts: []string{"0xbbb", "0xaaa"}, OrganizationID: "org-1"}, false},
		{"different org", ProviderStore{Accounts: []string{"0xaaa", "0xbbb"}, OrganizationID: "org-2"}, false},
		{"fewer accounts", ProviderStore{Accounts: []string{"0xaaa"}, OrganizationID: "org-1"}, false},
		{"empty", ProviderStore{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, base.Equal(tt.other))
		})
	}

	t.Run("both empty", func(t *testing.T) {
		assert.True(t, ProviderStore{}.Equal(ProviderStore{}))
	})
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t,
		"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		NormalizeAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))
}
