package main

import (
	"text/tabwriter"
)

func runProviders(cmdCtx *commandContext, _ []string) error {
	registry, err := loadRegistry(cmdCtx, true)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	if err := writef(tw, "NAME\tDIALOG ENDPOINT\tTOKEN ENDPOINT\tREDIRECT URI\tSCOPE\n"); err != nil {
		return err
	}
	for _, name := range registry.Names() {
		cfg, _ := registry.Get(name)
		scope := cfg.Scope
		if scope == "" {
			scope = "-"
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			name, cfg.DialogEndpoint, cfg.TokenEndpoint, cfg.RedirectURI, scope); err != nil {
			return err
		}
	}
	return tw.Flush()
}
