package entity

import "github.com/joseph-ayodele/cfdi-ledger/constants"

// Fields are the values recovered from one invoice or payroll receipt.
// Every field is optional; amounts are plain decimal strings such as
// "1234.56" with no currency symbol or thousands separator.
type Fields struct {
	FolioFiscal      *string `json:"folio_fiscal"`
	RFCEmisor        *string `json:"rfc_emisor"`
	RFCReceptor      *string `json:"rfc_receptor"`
	NombreEmisor     *string `json:"nombre_emisor"`
	NombreReceptor   *string `json:"nombre_receptor"`
	Puesto           *string `json:"puesto"`
	Subtotal         *string `json:"subtotal"`
	TotalDeducciones *string `json:"total_deducciones"`
	TotalNeto        *string `json:"total_neto"`
}

// FieldNames lists the JSON names of Fields in declaration order.
var FieldNames = []string{
	"folio_fiscal",
	"rfc_emisor",
	"rfc_receptor",
	"nombre_emisor",
	"nombre_receptor",
	"puesto",
	"subtotal",
	"total_deducciones",
	"total_neto",
}

// Map returns the fields keyed by their JSON names, nil values included.
func (f Fields) Map() map[string]*string {
	return map[string]*string{
		"folio_fiscal":      f.FolioFiscal,
		"rfc_emisor":        f.RFCEmisor,
		"rfc_receptor":      f.RFCReceptor,
		"nombre_emisor":     f.NombreEmisor,
		"nombre_receptor":   f.NombreReceptor,
		"puesto":            f.Puesto,
		"subtotal":          f.Subtotal,
		"total_deducciones": f.TotalDeducciones,
		"total_neto":        f.TotalNeto,
	}
}

// Slot returns the storage of the named field, or nil for an unknown name.
func (f *Fields) Slot(name string) **string {
	switch name {
	case "folio_fiscal":
		return &f.FolioFiscal
	case "rfc_emisor":
		return &f.RFCEmisor
	case "rfc_receptor":
		return &f.RFCReceptor
	case "nombre_emisor":
		return &f.NombreEmisor
	case "nombre_receptor":
		return &f.NombreReceptor
	case "puesto":
		return &f.Puesto
	case "subtotal":
		return &f.Subtotal
	case "total_deducciones":
		return &f.TotalDeducciones
	case "total_neto":
		return &f.TotalNeto
	}
	return nil
}

// IsEmpty reports whether no field was recovered.
func (f Fields) IsEmpty() bool {
	for _, v := range f.Map() {
		if v != nil {
			return false
		}
	}
	return true
}

// Record is a listed entry: its fields plus store metadata.
type Record struct {
	Fields
	Origen    string                 `json:"origen"`
	Categoria string                 `json:"categoria"`
	Archivo   string                 `json:"archivo"`
	Status    constants.RecordStatus `json:"status"`
	ErrorMsg  string                 `json:"error_msg,omitempty"`
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
