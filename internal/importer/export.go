package importer

import (
	"io"
	"strings"

	"github.com/geocoder89/leadhub/internal/domain/lead"
	"github.com/gocarina/gocsv"
)

// WriteCSV serializes leads with the same header the importer expects.
func WriteCSV(w io.Writer, leads []lead.Lead) error {
	rows := make([]Row, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, Row{
			OrganizationName:  l.OrganizationName,
			ContactPersonName: l.ContactPersonName,
			ContactDetails:    l.ContactDetails,
			Address:           l.Address,
			Email:             l.Email,
			SourceType:        l.SourceType,
		})
	}

	if len(rows) == 0 {
		// gocsv writes nothing for an empty slice, keep the header
		_, err := io.WriteString(w, headerLine())
		return err
	}

	return gocsv.Marshal(rows, w)
}

func headerLine() string {
	return strings.Join(RequiredColumns, ",") + "\n"
}
