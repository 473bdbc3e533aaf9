package insert

import (
	"errors"
	"sort"
)

// ErrUnknownCategory is returned for a category name that is not in the
// Insert Marktplaats category table.
var ErrUnknownCategory = errors.New("unknown insert category")

// categories maps the material categories shown on
// https://marktplaats.insert.nl/materialen to their GraphQL IDs.
// Not every category currently has products.
var categories = map[string]int{
	"Afbouwtimmerwerk":                             104,
	"Beglazing":                                    116,
	"Behangwerk, vloerbedekking en stoffering":     101,
	"Betonwerk":                                    56,
	"Binneninrichting":                             73,
	"Binnenriolering":                              155,
	"Bomen":                                        166,
	"Bouwkundige kanaalelementen":                  268,
	"Bouwplaatsvoorzieningen":                      207,
	"Brandbestrijdingsinstallaties":                5,
	"Buitenriolering en drainage":                  45,
	"Communicatie- en beveiligingsinstallaties":    141,
	"Coniferen":                                    223,
	"Dakbedekkingen":                               20,
	"Dakgoten en hemelwaterafvoeren":               250,
	"Dekvloeren en vloersystemen":                  83,
	"Elektrotechnische installaties":               78,
	"Funderingspalen en damwanden":                 61,
	"Gasinstallaties":                              119,
	"Gebouwenbeheersystemen":                       682,
	"Gevelonderhoudinstallaties":                   702,
	"Gevelschermen":                                87,
	"Groenvoorzieningen":                           720,
	"Grondwerken":                                  330,
	"Hagen":                                        283,
	"Heesters":                                     288,
	"Hef- en hijsinstallaties":                     234,
	"Koelinstallaties":                             136,
	"Kozijnen, ramen en deuren":                    10,
	"Liftinstallaties":                             85,
	"Metaal- en kunststofwerk":                     132,
	"Metaalconstructiewerk":                        15,
	"Metselwerk":                                   331,
	"Na-isolatie":                                  188,
	"Natuur- en kunststeen":                        259,
	"Overige categorieen":                          1,
	"Perslucht- en vacuuminstallaties":             149,
	"Plafond- en wandsystemen":                     70,
	"Regelinstallaties":                            629,
	"Roltrappen en rolpaden":                       695,
	"Ruwbouwtimmerwerk":                            58,
	"Sanitair":                                     8,
	"Sloopwerk":                                    301,
	"Stukadoorwerk":                                474,
	"Systeembekledingen":                           93,
	"Technische inrichting":                        179,
	"Tegelwerk":                                    481,
	"Terreininrichting":                            3,
	"Terreinverhardingen":                          28,
	"Trappen en balustraden":                       26,
	"Vast planten/ Varens":                         295,
	"Ventilatie- en luchtbehandelingsinstallaties": 76,
	"Verplaatsbare gebouwen":                       712,
	"Verwarmingsinstallaties":                      13,
	"Voegvulling":                                  461,
	"Vooraf vervaardigde steenachtige elementen":   31,
	"Waterinstallaties":                            67,
}

// CategoryID returns the GraphQL ID of the named category.
func CategoryID(name string) (int, bool) {
	id, ok := categories[name]
	return id, ok
}

// Categories returns all category names in sorted order.
func Categories() []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
