// Package constants holds the physical constants shared by the solver
// components.
package constants

const (
	Pi         = 3.14159265358979324
	OneOver4Pi = 0.079577471545948
	KcalToKJ   = 4.184
	BulkCoeff  = 2529.12179861515279
	UnitsCoeff = 1389.3875744   // 332.0716 * KcalToKJ
	UnitsPara  = 8729.779593448 // 2 * UnitsCoeff * Pi
)
