package workflow

import (
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// limaTime is Peru's civil time zone (no daylight saving)
var limaTime = time.FixedZone("PET", -5*60*60)

// Render replaces every {{key}} placeholder in body with the matching context
// value in a single pass. Unknown keys are left as they are.
func Render(body string, c Context) string {
	values := renderValues(c)
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		key := match[2 : len(match)-2]
		if value, ok := values[key]; ok {
			return value
		}
		return match
	})
}

func renderValues(c Context) map[string]string {
	visitDate := ""
	if c.VisitDate != nil {
		visitDate = c.VisitDate.In(limaTime).Format("2/1/2006")
	}

	kind, price := "", ""
	if c.Property != nil {
		kind = c.Property.Kind
		if c.Property.SalePrice > 0 {
			price = FormatPrice(c.Property.SalePrice)
		}
	}

	return map[string]string{
		"name":           c.Name,
		"nombre":         c.Name,
		"nombre_cliente": c.Name,
		"phone":          c.Phone,
		"telefono":       c.Phone,
		"owner":          c.OwnerID,
		"vendedor":       c.OwnerID,
		"visit_date":     visitDate,
		"fecha_visita":   visitDate,
		"property_kind":  kind,
		"propiedad_tipo": kind,
		"price":          price,
		"precio":         price,
		// positional convention of older templates
		"1": c.Name,
		"2": c.Phone,
		"3": c.OwnerID,
	}
}

// FormatPrice formats an amount the es-PE way: comma thousands separator,
// dot decimal separator, at most three decimals.
func FormatPrice(amount float64) string {
	rounded := math.Round(amount*1000) / 1000
	whole, frac := math.Modf(math.Abs(rounded))

	digits := strconv.FormatFloat(whole, 'f', 0, 64)
	var b strings.Builder
	if rounded < 0 {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	if milli := int(math.Round(frac * 1000)); milli > 0 {
		decimals := strings.TrimRight(strconv.Itoa(1000 + milli)[1:], "0")
		b.WriteByte('.')
		b.WriteString(decimals)
	}
	return b.String()
}

// TextToHTML wraps a plain-text body in a minimal HTML document
func TextToHTML(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;line-height:1.5">` +
		escaped + `</body></html>`
}
