package session

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/xerrors"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()

	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", s, err)
	}
	return ts
}

type turn struct {
	at     string
	sid    interface{}
	intent interface{}
	domain interface{}
	log    string
	attrs  map[string]interface{}
}

func events(t *testing.T, turns ...turn) []RawEvent {
	t.Helper()

	evs := make([]RawEvent, 0, len(turns))
	for _, tr := range turns {
		attrs := map[string]interface{}{"sessionid": tr.sid}
		if tr.log != "" {
			attrs["conversation_log"] = tr.log
		}
		for k, v := range tr.attrs {
			attrs[k] = v
		}

		evs = append(evs, RawEvent{
			Timestamp: mustTime(t, tr.at),
			Resource: map[string]interface{}{
				"type":   "cloud_run_revision",
				"labels": map[string]interface{}{"configuration_name": "asistente-pagos"},
			},
			Payload: map[string]interface{}{
				"intent_information": map[string]interface{}{
					"intent_name":      tr.intent,
					"knowledge_domain": tr.domain,
				},
				"session_attributes": attrs,
			},
		})
	}
	return evs
}

func TestTransform_OneSessionPerIdentifier(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 10:00:00", sid: "s-1", intent: "saldo"},
		turn{at: "2024-03-01 10:01:00", sid: "s-1"},
		turn{at: "2024-03-01 11:00:00", sid: "s-2"},
		turn{at: "2024-03-01 11:05:00", sid: nil, intent: "saldo"},
		turn{at: "2024-03-01 11:06:00", sid: ""},
	)

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(sessions) != 2 {
		t.Fatalf("Size of sessions should be 2, but %d", len(sessions))
	}

	seen := map[string]int{}
	for _, s := range sessions {
		seen[s.SessionID]++
	}
	if seen["s-1"] != 1 || seen["s-2"] != 1 {
		t.Errorf("each session should appear exactly once, but %v", seen)
	}
}

func TestTransform_OrderedByStartDescending(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 09:00:00", sid: "early"},
		turn{at: "2024-03-02 09:00:00", sid: "late"},
		turn{at: "2024-03-01 12:00:00", sid: "middle"},
	)

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var got []string
	for _, s := range sessions {
		got = append(got, s.SessionID)
	}

	if diff := cmp.Diff([]string{"late", "middle", "early"}, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestTransform_Preconditions(t *testing.T) {
	t.Run("missing timestamp", func(t *testing.T) {
		in := events(t, turn{at: "2024-03-01 10:00:00", sid: "s-1"})
		in = append(in, RawEvent{Payload: map[string]interface{}{
			"session_attributes": map[string]interface{}{"sessionid": "s-2"},
		}})

		sessions, err := Transform(in)
		if !xerrors.Is(err, ErrMissingTimestamp) {
			t.Fatalf("error should be ErrMissingTimestamp, but %v", err)
		}
		if sessions != nil {
			t.Errorf("no sessions should be emitted, but %d", len(sessions))
		}
	})

	t.Run("missing session identifier field", func(t *testing.T) {
		in := []RawEvent{{
			Timestamp: mustTime(t, "2024-03-01 10:00:00"),
			Payload:   map[string]interface{}{"intent_information": map[string]interface{}{"intent_name": "saldo"}},
		}}

		if _, err := Transform(in); !xerrors.Is(err, ErrMissingSessionID) {
			t.Fatalf("error should be ErrMissingSessionID, but %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		sessions, err := Transform(nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(sessions) != 0 {
			t.Errorf("Size of sessions should be 0, but %d", len(sessions))
		}
	})
}

func TestTransform_FillsIntentAndDomain(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 10:00:00", sid: "s-1", intent: nil, domain: ""},
		turn{at: "2024-03-01 10:01:00", sid: "s-1", intent: "A", domain: "pagos"},
		turn{at: "2024-03-01 10:02:00", sid: "s-1", intent: ""},
		turn{at: "2024-03-01 10:03:00", sid: "s-1", intent: "B", domain: "tarjetas"},
	)

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	s := sessions[0]
	if s.MotivoInicial != "A" {
		t.Errorf(`motivoinicial should be "A", but "%s"`, s.MotivoInicial)
	}
	if s.IntentPrevio != "pagos" {
		t.Errorf(`intentprevio should be "pagos", but "%s"`, s.IntentPrevio)
	}
}

func TestTransform_FillUsesFirstValueOnEqualLogs(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 10:00:00", sid: "s-1", log: "same"},
		turn{at: "2024-03-01 10:01:00", sid: "s-1", intent: "A", log: "same"},
		turn{at: "2024-03-01 10:02:00", sid: "s-1", log: "same"},
		turn{at: "2024-03-01 10:03:00", sid: "s-1", intent: "B", log: "same"},
	)

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	s := sessions[0]
	if s.MotivoInicial != "A" {
		t.Errorf(`motivoinicial should be "A", but "%s"`, s.MotivoInicial)
	}
	if s.NombreTransaccion != "B" {
		t.Errorf(`nombretransaccion should be "B", but "%s"`, s.NombreTransaccion)
	}
}

func TestTransform_RepresentativeResolvedIntent(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 10:00:00", sid: "s-1", intent: "asesorEnLinea", log: "short"},
		turn{at: "2024-03-01 10:01:00", sid: "s-1", log: "a much longer conversation log without intent"},
	)

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	s := sessions[0]
	if want := "short, user_say: , bot_say: "; s.Respuesta != want {
		t.Errorf(`respuesta should be "%s", but "%s"`, want, s.Respuesta)
	}
	if s.NombreTransaccion != "asesorEnLinea" || !s.TransferenciaAsesor {
		t.Errorf("representative should be the turn that resolved the intent, but %q / %v",
			s.NombreTransaccion, s.TransferenciaAsesor)
	}
	if s.MotivoInicial != "asesorEnLinea" {
		t.Errorf(`motivoinicial should be "asesorEnLinea", but "%s"`, s.MotivoInicial)
	}
}

func TestGroupFill(t *testing.T) {
	g := &group{id: "s-1"}
	for _, v := range []string{"", "A", "", "B"} {
		g.rows = append(g.rows, &Row{Intent: v, KnowledgeDomain: v})
	}

	g.fill()

	want := []string{"A", "A", "A", "A"}
	for i, r := range g.rows {
		if r.Intent != want[i] {
			t.Errorf(`rows[%d].Intent should be "%s", but "%s"`, i, want[i], r.Intent)
		}
		if r.KnowledgeDomain != want[i] {
			t.Errorf(`rows[%d].KnowledgeDomain should be "%s", but "%s"`, i, want[i], r.KnowledgeDomain)
		}
	}
}

func TestGroupFill_NothingToFill(t *testing.T) {
	g := &group{id: "s-1", rows: []*Row{{}, {}}}

	g.fill()

	for i, r := range g.rows {
		if r.Intent != "" || r.KnowledgeDomain != "" {
			t.Errorf("rows[%d] should stay unresolved, but %q / %q", i, r.Intent, r.KnowledgeDomain)
		}
	}
}

func TestGroupRepresentative(t *testing.T) {
	base := mustTime(t, "2024-03-01 10:00:00")

	cases := []struct {
		name string
		rows []*Row
		want int
	}{
		{
			name: "resolved intent beats longer log",
			rows: []*Row{
				{Intent: "saldo", RawIntent: "saldo", ConversationLog: "short", Timestamp: base},
				{Intent: "saldo", ConversationLog: "a much longer conversation log", Timestamp: base.Add(time.Minute)},
			},
			want: 0,
		},
		{
			name: "longer log beats later turn",
			rows: []*Row{
				{RawIntent: "saldo", ConversationLog: "longer log", Timestamp: base},
				{RawIntent: "saldo", ConversationLog: "short", Timestamp: base.Add(time.Minute)},
			},
			want: 0,
		},
		{
			name: "later turn wins on equal logs",
			rows: []*Row{
				{RawIntent: "saldo", ConversationLog: "same", Timestamp: base},
				{RawIntent: "saldo", ConversationLog: "same", Timestamp: base.Add(time.Minute)},
			},
			want: 1,
		},
		{
			name: "full tie keeps input order",
			rows: []*Row{
				{RawIntent: "saldo", ConversationLog: "same", Timestamp: base, SessionID: "first"},
				{RawIntent: "saldo", ConversationLog: "same", Timestamp: base, SessionID: "second"},
			},
			want: 0,
		},
		{
			name: "length counts characters",
			rows: []*Row{
				{RawIntent: "saldo", ConversationLog: "ñññ", Timestamp: base.Add(time.Minute)},
				{RawIntent: "saldo", ConversationLog: "abcd", Timestamp: base},
			},
			want: 1,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			g := &group{rows: c.rows}
			if got := g.representative(); got != c.rows[c.want] {
				t.Errorf("representative should be rows[%d], but %+v", c.want, got)
			}
		})
	}
}

func TestTransform_SlotTypeForcesTransactional(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 10:00:00", sid: "s-1", intent: "saldo", log: "a long conversation log that wins ranking"},
		turn{at: "2024-03-01 10:01:00", sid: "s-1", attrs: map[string]interface{}{"slot_type": "fecha"}},
		turn{at: "2024-03-01 10:00:00", sid: "s-2", intent: "saldo"},
	)
	in[0].Payload["intent_information"].(map[string]interface{})["transactional_or_non_transactional"] = "non_transactional"

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := map[string]string{}
	for _, s := range sessions {
		got[s.SessionID] = s.TransaccionDuranteLlamada
	}

	if got["s-1"] != "transactional" {
		t.Errorf(`s-1 should be "transactional", but "%s"`, got["s-1"])
	}
	if got["s-2"] != "" {
		t.Errorf(`s-2 should be empty, but "%s"`, got["s-2"])
	}
}

func TestTransform_Duration(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 10:00:00", sid: "s-1"},
		turn{at: "2024-03-01 12:30:15", sid: "s-1"},
		turn{at: "2024-03-01 11:00:00", sid: "s-1"},
		turn{at: "2024-03-01 00:00:00", sid: "s-2"},
		turn{at: "2024-03-02 01:02:03", sid: "s-2"},
	)

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	byID := map[string]*Session{}
	for _, s := range sessions {
		byID[s.SessionID] = s
	}

	if d := byID["s-1"].Duracion; d != "02:30:15" {
		t.Errorf(`duration should be "02:30:15", but "%s"`, d)
	}
	if h := byID["s-1"].HoraFinal; h != "12:30:15" {
		t.Errorf(`horafinal should be "12:30:15", but "%s"`, h)
	}
	if d := byID["s-2"].Duracion; d != "25:02:03" {
		t.Errorf(`duration should be "25:02:03", but "%s"`, d)
	}
	if !byID["s-2"].Start.Equal(mustTime(t, "2024-03-01 00:00:00")) {
		t.Errorf("start should be the earliest turn, but %v", byID["s-2"].Start)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{2*time.Hour + 30*time.Minute + 15*time.Second, "02:30:15"},
		{59*time.Second + 900*time.Millisecond, "00:00:59"},
		{100 * time.Hour, "100:00:00"},
	}

	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Errorf(`FormatDuration(%v) should be "%s", but "%s"`, c.in, c.want, got)
		}
	}
}

func TestTransform_Contact(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 10:00:00", sid: "whatsapp:5551234", attrs: map[string]interface{}{"email": "late@example.com"}},
		turn{at: "2024-03-01 10:01:00", sid: "whatsapp:5551234", attrs: map[string]interface{}{"correo": "", "correo_WA": "wa@example.com"}},
		turn{at: "2024-03-01 10:00:00", sid: "s-2", attrs: map[string]interface{}{
			"tels": "5550000", "telefono": "5559999", "curp": "ABCD800101HDFRRN09",
		}},
		turn{at: "2024-03-01 10:00:00", sid: "s-3"},
	)

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := map[string]Contact{}
	for _, s := range sessions {
		got[s.SessionID] = s.Contact
	}

	want := map[string]Contact{
		"whatsapp:5551234": {Email: "wa@example.com", Phone: "5551234"},
		"s-2":              {CURP: "ABCD800101HDFRRN09", Phone: "5559999"},
		"s-3":              {},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected contacts (-want +got):\n%s", diff)
	}
}

func TestTransform_DerivedFlags(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 10:00:00", sid: "transfer", intent: "asesorEnLinea"},
		turn{at: "2024-03-01 10:00:00", sid: "fallback", intent: "FallbackIntent"},
		turn{at: "2024-03-01 10:00:00", sid: "plain", intent: "saldo"},
	)

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, s := range sessions {
		if s.ConcluyeEnVoice != "No" {
			t.Errorf(`%s: concluyeenvoice should be "No", but "%s"`, s.SessionID, s.ConcluyeEnVoice)
		}
		if got, want := s.TransferenciaAsesor, s.SessionID == "transfer"; got != want {
			t.Errorf("%s: transferenciaasesor should be %v, but %v", s.SessionID, want, got)
		}
		want := ""
		if s.SessionID == "fallback" {
			want = "Yes"
		}
		if s.FallbackMessage != want {
			t.Errorf(`%s: fallbackmessage should be "%s", but "%s"`, s.SessionID, want, s.FallbackMessage)
		}
		if s.LineaNegocio != "asistente-pagos" {
			t.Errorf(`%s: lineanegocio should be "asistente-pagos", but "%s"`, s.SessionID, s.LineaNegocio)
		}
		if s.Year() != 2024 || s.Month() != 3 {
			t.Errorf("%s: year/month should be 2024/3, but %d/%d", s.SessionID, s.Year(), s.Month())
		}
	}
}

func TestTransform_ConversationLog(t *testing.T) {
	in := events(t, turn{at: "2024-03-01 10:00:00", sid: "s-1", log: "hola", attrs: map[string]interface{}{
		"inputtranscript": "quiero mi saldo",
	}})
	in[0].Payload["gemini_final_response"] = map[string]interface{}{"final_response": "su saldo es 10"}

	sessions, err := Transform(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "hola, user_say: quiero mi saldo, bot_say: su saldo es 10"
	if got := sessions[0].Respuesta; got != want {
		t.Errorf(`respuesta should be "%s", but "%s"`, want, got)
	}
}

func TestWriteCSV_Idempotent(t *testing.T) {
	in := events(t,
		turn{at: "2024-03-01 10:00:00", sid: "a", intent: "saldo", log: "x"},
		turn{at: "2024-03-01 10:00:00", sid: "b", intent: "saldo", log: "x"},
		turn{at: "2024-03-01 10:05:00", sid: "a", log: "y"},
		turn{at: "2024-03-01 10:00:00", sid: "whatsapp:1 us-east-1"},
	)

	render := func() []byte {
		sessions, err := Transform(in)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		buf := &bytes.Buffer{}
		if err := WriteCSV(buf, sessions); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		return buf.Bytes()
	}

	first, second := render(), render()
	if !bytes.Equal(first, second) {
		t.Errorf("output should be identical across runs:\n%s\n---\n%s", first, second)
	}
}

func TestWriteCSV_Schema(t *testing.T) {
	cases := map[string][]RawEvent{
		"minimal": {{
			Timestamp: mustTime(t, "2024-03-01 10:00:00"),
			Payload:   map[string]interface{}{"session_attributes": map[string]interface{}{"sessionid": "s-1"}},
		}},
		"rich": events(t, turn{at: "2024-03-01 10:00:00", sid: "s-1", intent: "saldo", attrs: map[string]interface{}{
			"unknown_field": "dropped", "email": "a@example.com", "slot_type": "x",
		}}),
	}

	for name, in := range cases {
		sessions, err := Transform(in)
		if err != nil {
			t.Fatalf("%s: Unexpected error: %v", name, err)
		}

		buf := &bytes.Buffer{}
		if err := WriteCSV(buf, sessions); err != nil {
			t.Fatalf("%s: Unexpected error: %v", name, err)
		}

		records, err := csv.NewReader(buf).ReadAll()
		if err != nil {
			t.Fatalf("%s: failed to read csv: %v", name, err)
		}

		if len(records) != 2 {
			t.Fatalf("%s: Size of records should be 2, but %d", name, len(records))
		}
		if diff := cmp.Diff(Columns, records[0]); diff != "" {
			t.Errorf("%s: header mismatch (-want +got):\n%s", name, diff)
		}
		if len(records[1]) != len(Columns) {
			t.Errorf("%s: record should have %d fields, but %d", name, len(Columns), len(records[1]))
		}
	}
}

func TestSessionRecord(t *testing.T) {
	s := &Session{
		Start:               mustTime(t, "2024-12-31 23:59:59"),
		SessionID:           "s-1",
		TransferenciaAsesor: true,
		Canal:               ChannelText,
		Duracion:            "00:00:01",
		TiempoPorSesion:     "00:00:01",
		HoraFinal:           "00:00:00",
		IndexLevel0:         "0",
		Contact:             Contact{Phone: "5551234"},
	}

	rec := s.Record()
	got := map[string]string{}
	for i, c := range Columns {
		got[c] = rec[i]
	}

	want := map[string]string{
		"timestamp":           "2024-12-31 23:59:59",
		"sessionid":           "s-1",
		"transferenciaasesor": "true",
		"canal":               "text",
		"isderivacion":        "",
		"telefono":            "5551234",
		"year":                "2024",
		"month":               "12",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf(`%s should be "%s", but "%s"`, k, v, got[k])
		}
	}
}
