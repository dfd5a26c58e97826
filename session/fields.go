package session

// Flat field names produced by the flattener and read by the transform.
const (
	FieldTimestamp         = "timestamp"
	FieldSessionID         = "sessionid"
	FieldIntentName        = "intent_name"
	FieldKnowledgeDomain   = "knowledge_domain"
	FieldOriginChannel     = "origin_channel"
	FieldTransactional     = "transactional_or_non_transactional"
	FieldConfigurationName = "configuration_name"
	FieldConversationLog   = "conversation_log"
	FieldInputTranscript   = "inputTranscript"
	FieldFinalResponse     = "final_response"
	FieldBotName           = "botName"
	FieldInputMode         = "inputMode"
	FieldSlotType          = "slot_type"
	FieldCURP              = "curp"
)

// resourceRenames maps dotted paths inside the resource bag to flat names.
var resourceRenames = map[string]string{
	"type":                      "resource_type",
	"labels.configuration_name": FieldConfigurationName,
	"labels.project_id":         "project_id",
	"labels.location":           "location",
	"labels.service_name":       "service_name",
	"labels.revision_name":      "revision_name",
}

// payloadRenames maps dotted paths inside the payload bag to flat names.
var payloadRenames = map[string]string{
	"intent_information.intent_name":                        FieldIntentName,
	"intent_information.knowledge_domain":                   FieldKnowledgeDomain,
	"intent_information.origin_channel":                     FieldOriginChannel,
	"intent_information.transactional_or_non_transactional": FieldTransactional,

	"gemini_final_response.final_response": FieldFinalResponse,

	"session_attributes.botname":          FieldBotName,
	"session_attributes.inputmode":        FieldInputMode,
	"session_attributes.sessionid":        FieldSessionID,
	"session_attributes.conversation_log": FieldConversationLog,
	"session_attributes.inputtranscript":  FieldInputTranscript,
	"session_attributes.slot_type":        FieldSlotType,

	"session_attributes.clavecliente":      "clavecliente",
	"session_attributes.curp":              FieldCURP,
	"session_attributes.telefono":          "telefono",
	"session_attributes.sucursal":          "sucursal",
	"session_attributes.estado":            "estado",
	"session_attributes.foliocita":         "foliocita",
	"session_attributes.correo":            "correo",
	"session_attributes.correoElectronico": "correoElectronico",
	"session_attributes.correo_WA":         "correo_WA",
	"session_attributes.email":             "email",
	"session_attributes.numeroCelular":     "numeroCelular",
	"session_attributes.phoneNumber":       "phoneNumber",
	"session_attributes.tel1":              "tel1",
	"session_attributes.telefono1_WA":      "telefono1_WA",
	"session_attributes.telefonos":         "telefonos",
	"session_attributes.tels":              "tels",
}

// Contact candidates in priority order. The first populated field wins.
var (
	curpFields  = []string{FieldCURP}
	emailFields = []string{"correo", "correoElectronico", "correo_WA", "email"}
	phoneFields = []string{"telefono", "numeroCelular", "phoneNumber", "tel1", "telefono1_WA", "telefonos", "tels"}
)

// retainedFields is the closed allow-list of flat fields kept after flattening.
var retainedFields = func() map[string]struct{} {
	names := []string{
		FieldTimestamp, FieldIntentName, FieldKnowledgeDomain, FieldOriginChannel,
		FieldTransactional, FieldConfigurationName, FieldConversationLog,
		FieldInputTranscript, FieldFinalResponse, FieldBotName, FieldInputMode,
		FieldSessionID, FieldSlotType,
	}
	names = append(names, curpFields...)
	names = append(names, emailFields...)
	names = append(names, phoneFields...)

	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}()
