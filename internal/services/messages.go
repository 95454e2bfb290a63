package services

// Fixed texts returned to callers. Error details are only ever logged.
const (
	UsageHint                   = "⚠️  El API funciona, pero envíe el parámetro 'Queja' en URL o JSON."
	NotConfiguredMessage        = "Error: El servicio de IA no está configurado."
	ClassificationFailedMessage = "Error al procesar la solicitud con el modelo de IA."
)
