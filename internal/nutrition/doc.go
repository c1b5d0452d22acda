// Package nutrition aggregates nutrient composition over a meal.
//
// Per-100g table values are scaled to each food's quantity, summed across the
// meal, and their certainty qualifiers (exact, below limit, trace, unknown) are
// reduced to one qualifier per nutrient by a table of pairwise rules. Energy
// ratios and the water balance are derived from the totals.
package nutrition
