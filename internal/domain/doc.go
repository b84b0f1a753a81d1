// Package domain models crop temperature tolerances and decides whether a
// crop can be planted at a place given its weather.
//
// # Temperatures
//
// A [Temperature] is a whole number of degrees in one [Scale]. Inputs are
// rounded to the nearest degree (halves away from zero). Temperatures in
// different scales are never converted: comparing, adding or subtracting them
// is a [TemperatureError], and Equal reports false.
//
// A [TemperatureRange] is a closed interval in one scale. Containment checks
// against another scale are a [TemperatureRangeError].
//
// # Crop Requirements
//
// Each crop carries a [TemperatureRequirement]:
//
//	absolute: the band the crop survives in, e.g. [40, 80] °F
//	optimal:  the band the crop thrives in,  e.g. [65, 75] °F
//
// The optimal band is always nested in the absolute band. Requirements are
// keyed by [RequirementKind] so other kinds (soil pH, frost dates) can be
// added without changing [Crop].
//
// Crop IDs are random UUIDs assigned by [NewCrop]. Storage reconstitutes
// crops with [RestoreCrop]; nothing in this package depends on how the ID was
// produced, only on ID equality.
//
// # Recommendation Algorithm
//
// Given a crop, a [Weather] pair (forecast and/or historic observation) and a
// [Confidence]:
//
//	f        = (100 - strictness) / 100           HIGH=0, MODERATE=0.02, LOW=0.05
//	optimal' = [low - |low|*f, high + |high|*f]   rounded to whole degrees
//	absolute:  forecast.high <= absolute.high and forecast.low >= absolute.low
//	forecast:  forecast.average in optimal'       (midpoint when enabled and no average)
//	historic:  historic.average in optimal'
//
// The crop is recommended when every evaluated check passes. The margin is
// the smallest signed distance to any evaluated boundary, so a negative
// margin names how far the binding constraint was missed.
//
// Boundary handling is set by [BoundaryPolicy]. The default treats absolute
// and forecast limits as inclusive and the historic check as exclusive.
//
// # Import Records
//
// Crops are imported from CSV rows of the form
//
//	name, absolute low, optimal low, optimal high, absolute high
//
// with temperatures in Fahrenheit unless another scale is given. See
// [ParseCropRecord].
package domain
