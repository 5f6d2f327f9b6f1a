package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateFormat es el formato ISO-8601 usado para serializar fechas.
const DateFormat = "2006-01-02"

// Date es un día de calendario sin hora ni zona. Es comparable y se puede
// usar como key de un map.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate devuelve la fecha normalizada (NewDate(2020, 1, 32) == 2020-02-01).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{t.Year(), t.Month(), t.Day()}
}

// DateOf devuelve el día de calendario de t en su propia zona horaria.
func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

// ParseDate parsea una fecha ISO (acepta también 2020-1-2).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-1-2", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want %s: %w", s, DateFormat, err)
	}
	return DateOf(t), nil
}

// MustParseDate es como ParseDate pero hace panic si falla. Solo para tests y constantes.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time devuelve la medianoche UTC de ese día (time.Time{} para la fecha cero).
func (d Date) Time() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC)
}

func (d Date) Year() int         { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int          { return d.d }

// IsZero indica si la fecha no fue inicializada.
func (d Date) IsZero() bool { return d == Date{} }

// AddDays devuelve la fecha desplazada n días.
func (d Date) AddDays(n int) Date { return NewDate(d.y, d.m, d.d+n) }

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// Compare devuelve -1, 0 o +1 según d sea anterior, igual o posterior a o.
func (d Date) Compare(o Date) int {
	switch {
	case d.y != o.y:
		return cmpInt(d.y, o.y)
	case d.m != o.m:
		return cmpInt(int(d.m), int(o.m))
	default:
		return cmpInt(d.d, o.d)
	}
}

// DaysUntil devuelve el número de días enteros de d a o (negativo si o es anterior).
// Usa segundos Unix: time.Duration satura pasados ~292 años.
func (d Date) DaysUntil(o Date) int {
	return int((o.Time().Unix() - d.Time().Unix()) / 86400)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateFormat)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
