// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scrape

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveClientIP_UntrustedPeerIgnoresForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.RemoteAddr = "203.0.113.5:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")

	trusted, err := ParseCIDRSet([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	ip, ok := ResolveClientIP(r, trusted)
	require.True(t, ok)
	require.Equal(t, "203.0.113.5", ip.String())
}

func TestResolveClientIP_TrustedPeerHonorsLeftmostForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")

	trusted, err := ParseCIDRSet([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	ip, ok := ResolveClientIP(r, trusted)
	require.True(t, ok)
	require.Equal(t, "198.51.100.9", ip.String())
}

func TestResolveClientIP_TrustedPeerHonorsForwardedHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("Forwarded", `for="[2001:db8:cafe::17]:4711", for=10.0.0.1`)

	trusted, err := ParseCIDRSet([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	ip, ok := ResolveClientIP(r, trusted)
	require.True(t, ok)
	require.Equal(t, "2001:db8:cafe::17", ip.String())
}

func TestResolveClientIP_UnparsablePeerIsUnknown(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.RemoteAddr = "not-an-address"

	ip, ok := ResolveClientIP(r, nil)
	require.False(t, ok)
	require.Nil(t, ip)
}

func TestCIDRSet_ParsesBareIPAsHostRoute(t *testing.T) {
	set, err := ParseCIDRSet([]string{"192.0.2.1"})
	require.NoError(t, err)
	require.True(t, set.Contains(net.ParseIP("192.0.2.1")))
	require.False(t, set.Contains(net.ParseIP("192.0.2.2")))
}
