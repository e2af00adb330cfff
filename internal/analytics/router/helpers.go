package router

import (
	cbigquery "cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
)

func nullString(value string) cbigquery.NullString {
	if value == "" {
		return cbigquery.NullString{}
	}
	return cbigquery.NullString{StringVal: value, Valid: true}
}

func money(value decimal.Decimal) cbigquery.NullString {
	return cbigquery.NullString{StringVal: value.StringFixed(2), Valid: true}
}
