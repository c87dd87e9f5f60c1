package entity

// BusinessInfo datos del emisor de la factura (proveedor registrado en GST).
type BusinessInfo struct {
	Name    string `json:"name"`
	GSTIN   string `json:"gstin,omitempty"`
	Address string `json:"address,omitempty"`
	State   string `json:"state,omitempty"` // código de estado GST (2 dígitos)
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// ClientInfo datos del receptor. Email es el destinatario de las notificaciones.
type ClientInfo struct {
	Name    string `json:"name"`
	GSTIN   string `json:"gstin,omitempty"`
	Address string `json:"address,omitempty"`
	State   string `json:"state,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}
