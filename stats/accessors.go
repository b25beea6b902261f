package stats

// Statistic accessors resolve the dotted paths used by custom validation
// rule expressions (e.g. feature.string_stats.common_stats.min_num_values)
// to numeric values. The table below is the complete accessor surface;
// rule compilation rejects any path not listed here.

// AccessorContext carries the statistics an expression term may read:
// the rule's feature within one split, plus the split itself for
// dataset-level terms.
type AccessorContext struct {
	Split   *SplitStatistics
	Feature *FeatureStatistics
}

type accessorFunc func(ctx AccessorContext) (float64, bool)

func commonStat(pick func(*CommonStatistics) float64) accessorFunc {
	return func(ctx AccessorContext) (float64, bool) {
		cs := ctx.Feature.CommonStats()
		if cs == nil {
			return 0, false
		}
		return pick(cs), true
	}
}

func stringCommonStat(pick func(*CommonStatistics) float64) accessorFunc {
	return func(ctx AccessorContext) (float64, bool) {
		if ctx.Feature == nil || ctx.Feature.StringStats == nil {
			return 0, false
		}
		return pick(&ctx.Feature.StringStats.CommonStats), true
	}
}

func numCommonStat(pick func(*CommonStatistics) float64) accessorFunc {
	return func(ctx AccessorContext) (float64, bool) {
		if ctx.Feature == nil || ctx.Feature.NumStats == nil {
			return 0, false
		}
		return pick(&ctx.Feature.NumStats.CommonStats), true
	}
}

func numStat(pick func(*NumericStatistics) float64) accessorFunc {
	return func(ctx AccessorContext) (float64, bool) {
		if ctx.Feature == nil || ctx.Feature.NumStats == nil {
			return 0, false
		}
		return pick(ctx.Feature.NumStats), true
	}
}

func stringStat(pick func(*StringStatistics) float64) accessorFunc {
	return func(ctx AccessorContext) (float64, bool) {
		if ctx.Feature == nil || ctx.Feature.StringStats == nil {
			return 0, false
		}
		return pick(ctx.Feature.StringStats), true
	}
}

func commonStatAccessors(prefix string, wrap func(func(*CommonStatistics) float64) accessorFunc) map[string]accessorFunc {
	return map[string]accessorFunc{
		prefix + ".num_non_missing": wrap(func(cs *CommonStatistics) float64 { return float64(cs.NumNonMissing) }),
		prefix + ".num_missing":     wrap(func(cs *CommonStatistics) float64 { return float64(cs.NumMissing) }),
		prefix + ".min_num_values":  wrap(func(cs *CommonStatistics) float64 { return float64(cs.MinNumValues) }),
		prefix + ".max_num_values":  wrap(func(cs *CommonStatistics) float64 { return float64(cs.MaxNumValues) }),
		prefix + ".avg_num_values":  wrap(func(cs *CommonStatistics) float64 { return cs.AvgNumValues }),
		prefix + ".tot_num_values":  wrap(func(cs *CommonStatistics) float64 { return float64(cs.TotNumValues) }),
	}
}

var accessors = buildAccessorTable()

func buildAccessorTable() map[string]accessorFunc {
	table := map[string]accessorFunc{
		"dataset.num_examples": func(ctx AccessorContext) (float64, bool) {
			if ctx.Split == nil {
				return 0, false
			}
			return float64(ctx.Split.NumExamples), true
		},
		"feature.num_stats.min":       numStat(func(ns *NumericStatistics) float64 { return ns.Min }),
		"feature.num_stats.max":       numStat(func(ns *NumericStatistics) float64 { return ns.Max }),
		"feature.num_stats.mean":      numStat(func(ns *NumericStatistics) float64 { return ns.Mean }),
		"feature.num_stats.median":    numStat(func(ns *NumericStatistics) float64 { return ns.Median }),
		"feature.num_stats.std_dev":   numStat(func(ns *NumericStatistics) float64 { return ns.StdDev }),
		"feature.num_stats.num_zeros": numStat(func(ns *NumericStatistics) float64 { return float64(ns.NumZeros) }),

		"feature.string_stats.unique":     stringStat(func(ss *StringStatistics) float64 { return float64(ss.Unique) }),
		"feature.string_stats.avg_length": stringStat(func(ss *StringStatistics) float64 { return ss.AvgLength }),
	}

	for path, fn := range commonStatAccessors("feature.common_stats", commonStat) {
		table[path] = fn
	}
	for path, fn := range commonStatAccessors("feature.num_stats.common_stats", numCommonStat) {
		table[path] = fn
	}
	for path, fn := range commonStatAccessors("feature.string_stats.common_stats", stringCommonStat) {
		table[path] = fn
	}
	return table
}

// ValidAccessor reports whether path names a resolvable statistic.
func ValidAccessor(path string) bool {
	_, ok := accessors[path]
	return ok
}

// Resolve evaluates a statistic accessor against ctx. The second return
// is false when the path is unknown or the backing statistic is absent
// for this feature (e.g. a string_stats path on a numeric feature).
func Resolve(path string, ctx AccessorContext) (float64, bool) {
	fn, ok := accessors[path]
	if !ok {
		return 0, false
	}
	return fn(ctx)
}
