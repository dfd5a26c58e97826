package session

import (
	"strconv"
	"time"
)

// Columns is the destination schema, in output order.
var Columns = []string{
	"timestamp", "sessionid", "lineanegocio", "motivoinicial", "respuesta",
	"transacciondurantellamada", "nombretransaccion", "concluyeenvoice",
	"transferenciaasesor", "datollave", "canal", "tramiteseleccionado",
	"tramiteaccion", "intentprevio", "isfallback", "fallbackmessage",
	"isderivacion", "duracion", "tiempo_por_sesion", "horafinal",
	"__index_level_0__", "prestamoend", "flujoterminado", "curp",
	"correo", "telefono", "year", "month",
}

// BoolColumns are the columns typed as booleans downstream.
var BoolColumns = map[string]bool{
	"transferenciaasesor": true,
	"isderivacion":        true,
}

const (
	transferIntent  = "asesorEnLinea"
	fallbackIntent  = "FallbackIntent"
	concludedNo     = "No"
	fallbackYes     = "Yes"
	indexLevelValue = "0"
	clockLayout     = "15:04:05"
)

// Session is one output row per conversation session. Empty strings render
// as nulls.
type Session struct {
	Start time.Time
	End   time.Time

	SessionID                 string
	LineaNegocio              string
	MotivoInicial             string
	Respuesta                 string
	TransaccionDuranteLlamada string
	NombreTransaccion         string
	ConcluyeEnVoice           string
	TransferenciaAsesor       bool
	DatoLlave                 string
	Canal                     Channel
	TramiteSeleccionado       string
	TramiteAccion             string
	IntentPrevio              string
	IsFallback                string
	FallbackMessage           string
	Duracion                  string
	TiempoPorSesion           string
	HoraFinal                 string
	IndexLevel0               string
	PrestamoEnd               string
	FlujoTerminado            string

	Contact
}

func newSession(rep *Row, start, end time.Time, c Contact) *Session {
	lineaNegocio, _ := rep.Fields.String(FieldConfigurationName)
	d := FormatDuration(end.Sub(start))

	s := &Session{
		Start: start,
		End:   end,

		SessionID:                 rep.SessionID,
		LineaNegocio:              lineaNegocio,
		MotivoInicial:             rep.Intent,
		Respuesta:                 rep.ConversationLog,
		TransaccionDuranteLlamada: rep.Transactional,
		NombreTransaccion:         rep.RawIntent,
		ConcluyeEnVoice:           concludedNo,
		TransferenciaAsesor:       rep.RawIntent == transferIntent,
		Canal:                     rep.Canal,
		IntentPrevio:              rep.KnowledgeDomain,
		Duracion:                  d,
		TiempoPorSesion:           d,
		HoraFinal:                 end.Format(clockLayout),
		IndexLevel0:               indexLevelValue,

		Contact: c,
	}

	if rep.Intent == fallbackIntent {
		s.FallbackMessage = fallbackYes
	}

	return s
}

// Year is the calendar year the session started in.
func (s *Session) Year() int { return s.Start.Year() }

// Month is the calendar month the session started in.
func (s *Session) Month() int { return int(s.Start.Month()) }

// Record renders s in Columns order.
func (s *Session) Record() []string {
	return []string{
		FormatTimestamp(s.Start),
		s.SessionID,
		s.LineaNegocio,
		s.MotivoInicial,
		s.Respuesta,
		s.TransaccionDuranteLlamada,
		s.NombreTransaccion,
		s.ConcluyeEnVoice,
		strconv.FormatBool(s.TransferenciaAsesor),
		s.DatoLlave,
		string(s.Canal),
		s.TramiteSeleccionado,
		s.TramiteAccion,
		s.IntentPrevio,
		s.IsFallback,
		s.FallbackMessage,
		"", // isderivacion is reserved downstream
		s.Duracion,
		s.TiempoPorSesion,
		s.HoraFinal,
		s.IndexLevel0,
		s.PrestamoEnd,
		s.FlujoTerminado,
		s.CURP,
		s.Email,
		s.Phone,
		strconv.Itoa(s.Year()),
		strconv.Itoa(s.Month()),
	}
}
