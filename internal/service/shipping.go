package service

import (
	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
)

// Shipping zones, from closest to most remote
const (
	ZoneLimaLocal      = "LIMA_LOCAL"
	ZoneLimaProvincias = "LIMA_PROVINCIAS"
	ZoneCosta          = "COSTA"
	ZoneSierraSelva    = "SIERRA_SELVA"
	ZoneRemotas        = "ZONAS_REMOTAS"
)

// Shipping modalities
const (
	ModalityDomicilio = "DOMICILIO"
	ModalityAgencia   = "AGENCIA"
)

// ShippingRate is the cost of delivering to a zone with one modality
type ShippingRate struct {
	Zone          string          `json:"zone"`
	ZoneLabel     string          `json:"zoneLabel"`
	Modality      string          `json:"modality"`
	ModalityLabel string          `json:"modalityLabel"`
	Cost          decimal.Decimal `json:"cost"`
	EstimatedDays string          `json:"estimatedDays"`
}

// ZoneOptions lists every modality available for a zone
type ZoneOptions struct {
	Zone      string          `json:"zone"`
	ZoneLabel string          `json:"zoneLabel"`
	Options   []ShippingRate  `json:"options"`
	Savings   decimal.Decimal `json:"savings"`
}

type rateEntry struct {
	cost int64
	days string
}

type zoneEntry struct {
	label string
	rates map[string]rateEntry
}

var zoneOrder = []string{ZoneLimaLocal, ZoneLimaProvincias, ZoneCosta, ZoneSierraSelva, ZoneRemotas}

var modalityOrder = []string{ModalityDomicilio, ModalityAgencia}

var modalityLabels = map[string]string{
	ModalityDomicilio: "Envío a domicilio",
	ModalityAgencia:   "Recojo en agencia",
}

var rateTable = map[string]zoneEntry{
	ZoneLimaLocal: {label: "Lima Metropolitana", rates: map[string]rateEntry{
		ModalityDomicilio: {10, "1-2 días hábiles"},
		ModalityAgencia:   {8, "1-2 días hábiles"},
	}},
	ZoneLimaProvincias: {label: "Lima Provincias", rates: map[string]rateEntry{
		ModalityDomicilio: {15, "2-3 días hábiles"},
		ModalityAgencia:   {12, "2-3 días hábiles"},
	}},
	ZoneCosta: {label: "Costa", rates: map[string]rateEntry{
		ModalityDomicilio: {20, "3-5 días hábiles"},
		ModalityAgencia:   {15, "3-4 días hábiles"},
	}},
	ZoneSierraSelva: {label: "Sierra y Selva", rates: map[string]rateEntry{
		ModalityDomicilio: {25, "4-6 días hábiles"},
		ModalityAgencia:   {18, "4-5 días hábiles"},
	}},
	ZoneRemotas: {label: "Zonas remotas", rates: map[string]rateEntry{
		ModalityDomicilio: {35, "6-10 días hábiles"},
		ModalityAgencia:   {25, "5-8 días hábiles"},
	}},
}

// ShippingResolver looks up rates in the static table
type ShippingResolver struct{}

// NewShippingResolver creates a shipping resolver
func NewShippingResolver() *ShippingResolver {
	return &ShippingResolver{}
}

func (r *ShippingResolver) rate(zone, modality string) ShippingRate {
	z := rateTable[zone]
	e := z.rates[modality]
	return ShippingRate{
		Zone:          zone,
		ZoneLabel:     z.label,
		Modality:      modality,
		ModalityLabel: modalityLabels[modality],
		Cost:          decimal.NewFromInt(e.cost),
		EstimatedDays: e.days,
	}
}

// Lookup returns the rate for a zone and modality
func (r *ShippingResolver) Lookup(zone, modality string) (ShippingRate, error) {
	z, ok := rateTable[zone]
	if !ok {
		return ShippingRate{}, apperr.New(apperr.Validation, "invalid shipping zone: %q", zone)
	}
	if _, ok := z.rates[modality]; !ok {
		return ShippingRate{}, apperr.New(apperr.Validation, "invalid shipping modality: %q", modality)
	}
	return r.rate(zone, modality), nil
}

// Options returns every modality for a zone and how much pickup saves over home delivery
func (r *ShippingResolver) Options(zone string) (ZoneOptions, error) {
	z, ok := rateTable[zone]
	if !ok {
		return ZoneOptions{}, apperr.New(apperr.Validation, "invalid shipping zone: %q", zone)
	}

	out := ZoneOptions{Zone: zone, ZoneLabel: z.label}
	for _, m := range modalityOrder {
		out.Options = append(out.Options, r.rate(zone, m))
	}
	home := decimal.NewFromInt(z.rates[ModalityDomicilio].cost)
	pickup := decimal.NewFromInt(z.rates[ModalityAgencia].cost)
	out.Savings = home.Sub(pickup)
	return out, nil
}

// All returns the options of every zone, closest first
func (r *ShippingResolver) All() []ZoneOptions {
	out := make([]ZoneOptions, 0, len(zoneOrder))
	for _, zone := range zoneOrder {
		opts, _ := r.Options(zone)
		out = append(out, opts)
	}
	return out
}

// ZoneLabel returns the human readable zone name
func (r *ShippingResolver) ZoneLabel(zone string) string {
	if z, ok := rateTable[zone]; ok {
		return z.label
	}
	return zone
}
