package session

import (
	"encoding/csv"
	"io"

	"golang.org/x/xerrors"
)

// WriteCSV writes a header line followed by one record per session.
func WriteCSV(w io.Writer, sessions []*Session) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return xerrors.Errorf("failed to write csv header: %w", err)
	}

	for i, s := range sessions {
		if err := cw.Write(s.Record()); err != nil {
			return xerrors.Errorf("failed to write session %d (%s): %w", i, s.SessionID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return xerrors.Errorf("failed to flush csv: %w", err)
	}

	return nil
}
