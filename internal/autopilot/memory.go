package autopilot

import (
	"fmt"
	"strings"
)

const maxRecords = 20

// TurnRecord captures what the pilot did in one year.
type TurnRecord struct {
	Turn      int      `json:"turn"`
	Moves     []string `json:"moves"`
	Rejected  int      `json:"rejected"`
	Cash      int64    `json:"cash"`
	NetWorth  int64    `json:"net_worth"`
	Liquidity string   `json:"liquidity"`
}

// Memory keeps the most recent turn records.
type Memory struct {
	Records []TurnRecord `json:"records"`
}

// Record adds a turn record, trimming to maxRecords.
func (m *Memory) Record(r TurnRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Format returns the last n records, one line per year.
func (m *Memory) Format(n int) string {
	if len(m.Records) == 0 {
		return ""
	}
	start := max(len(m.Records)-n, 0)

	var b strings.Builder
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "year %2d: cash=%d net_worth=%d liquidity=%s", r.Turn, r.Cash, r.NetWorth, r.Liquidity)
		if len(r.Moves) > 0 {
			fmt.Fprintf(&b, " moves=[%s]", strings.Join(r.Moves, ", "))
		}
		if r.Rejected > 0 {
			fmt.Fprintf(&b, " rejected=%d", r.Rejected)
		}
		b.WriteString("\n")
	}
	return b.String()
}
