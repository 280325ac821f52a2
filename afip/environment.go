package afip

import (
	"fmt"
	"strings"
)

// Environment selects the AFIP endpoint set.
type Environment int

const (
	Homologation Environment = iota
	Production
)

// WSAAURL returns the authentication service (WSAA) endpoint.
func (e Environment) WSAAURL() string {
	switch e {
	case Production:
		return "https://wsaa.afip.gov.ar/ws/services/LoginCms"
	case Homologation:
		return "https://wsaahomo.afip.gov.ar/ws/services/LoginCms"
	}
	panic("invalid environment")
}

// WSFEURL returns the electronic invoicing service (WSFEv1) endpoint.
func (e Environment) WSFEURL() string {
	switch e {
	case Production:
		return "https://servicios1.afip.gov.ar/wsfev1/service.asmx"
	case Homologation:
		return "https://wswhomo.afip.gov.ar/wsfev1/service.asmx"
	}
	panic("invalid environment")
}

func (e Environment) Name() string {
	switch e {
	case Production:
		return "prod"
	case Homologation:
		return "homo"
	}
	panic("invalid environment")
}

func (e Environment) String() string { return e.Name() }

func (e *Environment) UnmarshalText(text []byte) error {
	val := strings.ToLower(strings.TrimSpace(string(text)))

	switch val {
	case "prod", "production":
		*e = Production
	case "homo", "homologation":
		*e = Homologation
	default:
		return fmt.Errorf("invalid AFIP_ENV: %q (allowed: prod, homo)", val)
	}
	return nil
}
