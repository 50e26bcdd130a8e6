package api

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// maxCSVRows caps how many recipients a single CSV upload may carry.
const maxCSVRows = 1000

// parseRecipientCSV reads a bulk-email CSV. The header row must contain
// "Email", "Subject" and "Message" columns (case-insensitive, any order);
// other columns are ignored. Malformed or empty-email rows are skipped.
func parseRecipientCSV(r io.Reader, maxRows int) ([]emailRequest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, errors.New("cabeçalho do CSV inválido")
	}

	emailIdx, subjectIdx, messageIdx := -1, -1, -1
	for i, h := range headers {
		switch {
		case strings.EqualFold(strings.TrimSpace(h), "email"):
			emailIdx = i
		case strings.EqualFold(strings.TrimSpace(h), "subject"):
			subjectIdx = i
		case strings.EqualFold(strings.TrimSpace(h), "message"):
			messageIdx = i
		}
	}
	if emailIdx == -1 || subjectIdx == -1 || messageIdx == -1 {
		return nil, errors.New("o CSV deve conter as colunas Email, Subject e Message")
	}

	if maxRows <= 0 {
		maxRows = maxCSVRows
	}

	reqs := make([]emailRequest, 0)
	for len(reqs) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New("linha do CSV inválida")
		}
		if len(record) != len(headers) {
			// skip malformed row
			continue
		}

		to := strings.TrimSpace(record[emailIdx])
		if to == "" {
			continue
		}

		reqs = append(reqs, emailRequest{
			To:      to,
			Subject: strings.TrimSpace(record[subjectIdx]),
			Message: record[messageIdx],
		})
	}

	if len(reqs) == 0 {
		return nil, errors.New("o CSV deve conter ao menos um destinatário")
	}

	return reqs, nil
}
