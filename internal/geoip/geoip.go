// Package geoip annotates client addresses with a country using the database
// embedded in phuslu/iploc. No external files are needed.
package geoip

import (
	"net"
	"sync"

	"github.com/phuslu/iploc"
)

// Placeholder codes for addresses that have no country.
const (
	UnknownCode = "??"
	PrivateCode = "LAN"
)

// Location is the country of an address.
type Location struct {
	Country     string
	CountryCode string
}

var (
	unknown = &Location{Country: "Unknown", CountryCode: UnknownCode}
	private = &Location{Country: "Private network", CountryCode: PrivateCode}
)

// Locator looks up and caches address locations. A nil *Locator is valid and
// reports every address as unknown.
type Locator struct {
	cache sync.Map // string -> *Location
}

// NewLocator returns a Locator backed by the embedded database.
func NewLocator() *Locator {
	return &Locator{}
}

// Lookup returns the location of addr. Anything that does not parse as an
// IPv4 or IPv6 address, such as a hostname logged with HostnameLookups on,
// is unknown.
func (l *Locator) Lookup(addr string) *Location {
	if l == nil {
		return unknown
	}

	if cached, ok := l.cache.Load(addr); ok {
		return cached.(*Location)
	}

	loc := locate(addr)
	l.cache.Store(addr, loc)
	return loc
}

// CountryCode is shorthand for Lookup(addr).CountryCode.
func (l *Locator) CountryCode(addr string) string {
	return l.Lookup(addr).CountryCode
}

func locate(addr string) *Location {
	ip := net.ParseIP(addr)
	if ip == nil {
		return unknown
	}
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return private
	}

	country := iploc.Country(ip)
	if country == "" {
		return unknown
	}
	return &Location{Country: country, CountryCode: country}
}
