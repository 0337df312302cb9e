package service

import (
	"fmt"
	"net/url"
	"strings"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// ContactLinkBuilder formats the WhatsApp message a customer sends to confirm an order
type ContactLinkBuilder struct {
	storeName string
	phone     string
	shipping  *ShippingResolver
}

// NewContactLinkBuilder creates a builder for the store's WhatsApp number
func NewContactLinkBuilder(storeName, phone string, shipping *ShippingResolver) *ContactLinkBuilder {
	return &ContactLinkBuilder{
		storeName: storeName,
		phone:     strings.TrimPrefix(phone, "+"),
		shipping:  shipping,
	}
}

func soles(d decimal.Decimal) string {
	return "S/ " + d.StringFixed(2)
}

// Message renders the order summary. Same order, same text.
func (b *ContactLinkBuilder) Message(order *models.Order) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "¡Hola %s! Quiero confirmar mi pedido #%d\n\n", b.storeName, order.ID)

	sb.WriteString("Productos:\n")
	for _, it := range order.Items {
		fmt.Fprintf(&sb, "- %s x%d: %s\n", it.ProductName, it.Quantity, soles(it.LineTotal()))
	}

	fmt.Fprintf(&sb, "\nSubtotal: %s\n", soles(order.Subtotal))
	fmt.Fprintf(&sb, "Envío (%s - %s): %s\n",
		b.shipping.ZoneLabel(order.ShippingZone), modalityLabel(order.ShippingModality), soles(order.ShippingCost))
	fmt.Fprintf(&sb, "Total: %s\n\n", soles(order.Total))

	sb.WriteString("Datos de envío:\n")
	fmt.Fprintf(&sb, "Nombre: %s\n", order.FullName)
	fmt.Fprintf(&sb, "DNI: %s\n", order.DNI)
	fmt.Fprintf(&sb, "Teléfono: %s\n", order.Phone)
	fmt.Fprintf(&sb, "Dirección: %s\n", order.Address)
	fmt.Fprintf(&sb, "Departamento: %s, Provincia: %s", order.Department, order.Province)

	return sb.String()
}

// Link returns the wa.me deep link carrying the order message
func (b *ContactLinkBuilder) Link(order *models.Order) string {
	text := strings.ReplaceAll(url.QueryEscape(b.Message(order)), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", b.phone, text)
}

func modalityLabel(modality string) string {
	if l, ok := modalityLabels[modality]; ok {
		return l
	}
	return modality
}
