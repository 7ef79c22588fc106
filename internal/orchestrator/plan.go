package orchestrator

// Plan lists the self checks for every package and the pairwise checks
// for every unordered pair, under each python version. Untracked
// packages are dropped, and so are units that include a package known
// not to support the python version.
func (o *Orchestrator) Plan(packages []string, versions []int) []Unit {
	pkgs := o.tracked(packages)

	var units []Unit
	for _, p := range pkgs {
		units = o.appendUnit(units, versions, p)
	}
	for i := range pkgs {
		for j := i + 1; j < len(pkgs); j++ {
			units = o.appendUnit(units, versions, pkgs[i], pkgs[j])
		}
	}
	return units
}

// PlanGitHub lists checks for the GitHub heads: each head alone, and
// each head paired with every tracked PyPI package except the one it
// is a development version of.
func (o *Orchestrator) PlanGitHub(versions []int) []Unit {
	var units []Unit
	tracked := o.whitelist.Tracked()
	for _, head := range o.whitelist.HeadURLs() {
		units = o.appendUnit(units, versions, head)
		own := o.whitelist.PyPIName(head)
		for _, p := range tracked {
			if p == own {
				continue
			}
			units = o.appendUnit(units, versions, head, p)
		}
	}
	return units
}

func (o *Orchestrator) appendUnit(units []Unit, versions []int, pkgs ...string) []Unit {
	for _, v := range versions {
		if o.unsupported(v, pkgs) {
			continue
		}
		units = append(units, Unit{Packages: pkgs, PythonVersion: v})
	}
	return units
}

func (o *Orchestrator) unsupported(version int, pkgs []string) bool {
	for _, p := range pkgs {
		if o.whitelist.IsUnsupported(p, version) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) tracked(packages []string) []string {
	seen := make(map[string]struct{}, len(packages))
	var out []string
	for _, p := range packages {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if !o.whitelist.IsTracked(p) {
			o.log.Warnw("skipping package that is not whitelisted", "package", p)
			continue
		}
		out = append(out, p)
	}
	return out
}
