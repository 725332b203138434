package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
)

var (
	reFolio     = regexp.MustCompile(`[0-9a-fA-F]{8}(?:-[0-9a-fA-F]{4}){3}-[0-9a-fA-F]{12}`)
	reRFC       = regexp.MustCompile(`[A-Z&Ñ]{3,4}[0-9]{2}(?:0[1-9]|1[0-2])(?:0[1-9]|[12][0-9]|3[01])[A-Z0-9]{3}`)
	reRFCPrefix = regexp.MustCompile(`^[A-Z&Ñ]{3,4}[0-9]{6}[A-Z0-9]{3}`)
	reDigit     = regexp.MustCompile(`\d`)

	reIssuerLabel = regexp.MustCompile(`(?i)emisor:|social:|nombre:`)
	reIssuerStop  = regexp.MustCompile(`(?i)folio|rfc|no\.?\s*de\s*serie|serie|csd|regimen|lugar`)
	reRFCMarker   = regexp.MustCompile(`(?i)rfc[:\.]?`)

	reAmount      = regexp.MustCompile(`\$?\s*[\d,]+\.\d{2}`)
	reLooseAmount = regexp.MustCompile(`[\d,]+(?:\.\d{2})?`)

	reRFCLabel       = regexp.MustCompile(`(?i)r\.?f\.?c\.?\s*:?`)
	reRFCIssuerLabel = regexp.MustCompile(`(?i)rfc.*emisor\s*:?`)

	reRecipientLabel = regexp.MustCompile(`(?i)(?:receptor|trabajador|empleado|recibí de)[:\s]+([^\n]+)`)
	rePayrollPhrase  = regexp.MustCompile(`(?i)pago de n[oó]mina`)

	reRoleLabel = regexp.MustCompile(`(?i)(?:puesto|departamento|categor[ií]a|ocupaci[oó]n)[:\s]+`)
	reRoleStop  = regexp.MustCompile(`(?i)fecha|salario|sindicalizado|periodo|riesgo|jornada`)
)

var recipientKeywords = []string{"receptor", "cliente", "facturar a", "razón social:"}

// nameBlacklist holds payroll and fiscal jargon that never appears in a
// person's name.
var nameBlacklist = []string{
	"sueldo", "salario", "hora", "extra", "aguinaldo", "prima", "vacacion",
	"bono", "subsidio", "fondo", "ahorro", "vale", "despensa", "imss",
	"infonavit", "isr", "sat", "folio", "fecha", "periodo", "dia", "pago",
	"nomina", "neto", "total", "concepto", "percepcion", "deduccion",
	"monto", "importe", "fiscal", "digital", "sello", "cadena",
}

func defaultRules() []rule {
	return []rule{
		{name: "nombre_emisor", policy: firstWins, slot: func(f *entity.Fields) **string { return &f.NombreEmisor }, apply: issuerName},
		{name: "subtotal", policy: overwrite, slot: func(f *entity.Fields) **string { return &f.Subtotal }, apply: subtotal},
		{name: "rfc_emisor", policy: overwrite, slot: func(f *entity.Fields) **string { return &f.RFCEmisor }, apply: issuerRFCLabelled},
		{name: "rfc_emisor_secondary", policy: overSeed, slot: func(f *entity.Fields) **string { return &f.RFCEmisor }, apply: issuerRFCSecondary},
		{name: "nombre_receptor", policy: firstWins, slot: func(f *entity.Fields) **string { return &f.NombreReceptor }, apply: recipientName},
		{name: "puesto", policy: firstWins, slot: func(f *entity.Fields) **string { return &f.Puesto }, apply: role},
		{name: "total_deducciones", policy: overwrite, slot: func(f *entity.Fields) **string { return &f.TotalDeducciones }, apply: totalDeductions},
		{name: "total_neto", policy: firstWins, slot: func(f *entity.Fields) **string { return &f.TotalNeto }, apply: netTotal},
	}
}

// globalPass seeds the folio and assigns the first two tax IDs by position.
func (st *state) globalPass(text string) {
	if folio := reFolio.FindString(text); folio != "" {
		st.fields.FolioFiscal = entity.StrPtr(folio)
	}
	st.rfcs = reRFC.FindAllString(text, -1)
	if len(st.rfcs) > 0 {
		st.fields.RFCEmisor = entity.StrPtr(st.rfcs[0])
	}
	if len(st.rfcs) > 1 {
		st.fields.RFCReceptor = entity.StrPtr(st.rfcs[1])
	}
}

// refineRecipient takes the tax ID on, or right below, the first line that
// names the recipient. The first keyword line that yields an ID wins.
func (st *state) refineRecipient(lines []string) {
	for i, raw := range lines {
		if !newLine(raw).has(recipientKeywords...) {
			continue
		}
		if m := reRFC.FindString(raw); m != "" {
			st.fields.RFCReceptor = entity.StrPtr(m)
			return
		}
		if i+1 < len(lines) {
			if m := reRFC.FindString(collapse(lines[i+1])); m != "" {
				st.fields.RFCReceptor = entity.StrPtr(m)
				return
			}
		}
	}
}

// repairCollision swaps in the other global match when issuer and recipient
// came out identical. It is a guess, not a proof.
func (st *state) repairCollision() {
	if len(st.rfcs) < 2 || entity.Deref(st.fields.RFCEmisor) != entity.Deref(st.fields.RFCReceptor) {
		return
	}
	if st.rfcs[0] == entity.Deref(st.fields.RFCEmisor) {
		st.fields.RFCReceptor = entity.StrPtr(st.rfcs[1])
	} else {
		st.fields.RFCReceptor = entity.StrPtr(st.rfcs[0])
	}
}

func issuerName(st *state, ln line) outcome {
	if ln.has("nombre") && ln.has("emisor", "razón social", "razon social") {
		parts := reIssuerLabel.Split(ln.clean, -1)
		if len(parts) < 2 {
			return miss
		}
		val := strings.TrimSpace(reIssuerStop.Split(strings.TrimSpace(parts[1]), -1)[0])
		if utf8.RuneCountInString(val) > 3 {
			return hit(val)
		}
		return miss
	}
	rfc := entity.Deref(st.fields.RFCEmisor)
	if rfc == "" || !strings.Contains(ln.clean, rfc) {
		return miss
	}
	name := strings.TrimSpace(strings.ReplaceAll(ln.clean, rfc, ""))
	name = strings.TrimSpace(reRFCMarker.ReplaceAllString(name, ""))
	if utf8.RuneCountInString(name) > 5 && !reDigit.MatchString(name) {
		return hit(name)
	}
	return miss
}

// subtotal prefers explicit labels; an "importe" line only fills the field
// while it is empty, and a later labelled line still overwrites it.
func subtotal(st *state, ln line) outcome {
	if ln.has("subtotal", "sub total") {
		return lastAmount(ln.clean)
	}
	if st.fields.Subtotal == nil && ln.has("importe") && !ln.has("total") {
		return lastAmount(ln.clean)
	}
	return miss
}

func lastAmount(s string) outcome {
	nums := reAmount.FindAllString(s, -1)
	if len(nums) == 0 {
		return miss
	}
	raw := strings.NewReplacer("$", "", " ", "", ",", "").Replace(nums[len(nums)-1])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return miss
	}
	return hit(raw)
}

func issuerRFCLabelled(_ *state, ln line) outcome {
	if !ln.has("r.f.c.", "rfc") || ln.has("receptor", "cliente") {
		return miss
	}
	return rfcAfter(reRFCLabel, ln.clean)
}

func issuerRFCSecondary(_ *state, ln line) outcome {
	if !ln.has("rfc") || !ln.has("emisor") {
		return miss
	}
	return rfcAfter(reRFCIssuerLabel, ln.clean)
}

// rfcAfter validates the first token following the first label match.
func rfcAfter(label *regexp.Regexp, s string) outcome {
	parts := label.Split(s, -1)
	if len(parts) < 2 {
		return miss
	}
	token := strings.Split(strings.TrimSpace(parts[1]), " ")[0]
	if reRFCPrefix.MatchString(token) {
		return hit(token)
	}
	return miss
}

func recipientName(_ *state, ln line) outcome {
	if m := reRecipientLabel.FindStringSubmatch(ln.clean); m != nil {
		return plausibleName(strings.TrimSpace(m[1]))
	}
	if ln.has("pago de n") && ln.has("mina") {
		return plausibleName(strings.TrimSpace(rePayrollPhrase.ReplaceAllString(ln.clean, "")))
	}
	return miss
}

func plausibleName(s string) outcome {
	if utf8.RuneCountInString(s) <= 5 || reDigit.MatchString(s) {
		return miss
	}
	lower := strings.ToLower(s)
	for _, w := range nameBlacklist {
		if strings.Contains(lower, w) {
			return miss
		}
	}
	return hit(s)
}

func role(_ *state, ln line) outcome {
	if !ln.has("puesto", "departamento", "categoría", "categoria", "ocupación", "ocupacion") {
		return miss
	}
	parts := reRoleLabel.Split(ln.clean, -1)
	if len(parts) < 2 {
		return miss
	}
	val := strings.TrimSpace(reRoleStop.Split(strings.TrimSpace(parts[1]), -1)[0])
	if utf8.RuneCountInString(val) > 2 {
		return hit(val)
	}
	return miss
}

// totalDeductions ignores short integers such as years and codes.
func totalDeductions(_ *state, ln line) outcome {
	if !ln.has("total") || !ln.has("deducciones") {
		return miss
	}
	var last string
	for _, n := range reLooseAmount.FindAllString(ln.clean, -1) {
		if strings.Contains(n, ".") || len(n) > 3 {
			last = n
		}
	}
	if last == "" {
		return miss
	}
	return hit(strings.ReplaceAll(last, ",", ""))
}

func netTotal(_ *state, ln line) outcome {
	if !ln.has("neto", "líquido", "liquido", "a pagar", "alcance") {
		return miss
	}
	var last string
	for _, n := range reLooseAmount.FindAllString(ln.clean, -1) {
		if strings.Contains(n, ".") {
			last = n
		}
	}
	if last == "" {
		return miss
	}
	return hit(strings.ReplaceAll(last, ",", ""))
}
