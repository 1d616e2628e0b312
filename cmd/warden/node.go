package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/warden"
	"github.com/xraph/warden/engine"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
	"github.com/xraph/warden/query"
)

// createOpts are the flags of node create.
type createOpts struct {
	macs       []string
	state      string
	attributes map[string]string
}

// listOpts are the flags of node list. Pointer fields are unset unless the
// flag was given.
type listOpts struct {
	reserved   *bool
	associated *bool
	reservedBy []string
	state      string
	olderThan  time.Duration
	limit      int
	marker     int64
	sortKey    string
	desc       bool
}

var (
	nodeCreate createOpts
	nodeList   listOpts

	// nodeCmd represents the node command group
	nodeCmd = &cobra.Command{
		Use:   "node",
		Short: "Manage nodes and their reservations",
	}

	nodeCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Register a node, optionally with NICs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeCreate(cmd.Context(), conf, cmd.OutOrStdout(), args[0], nodeCreate)
		},
	}

	nodeListCmd = &cobra.Command{
		Use:   "list",
		Short: "List nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := nodeList
			if f := cmd.Flags().Lookup("reserved"); f.Changed {
				v, _ := cmd.Flags().GetBool("reserved")
				opts.reserved = &v
			}
			if f := cmd.Flags().Lookup("associated"); f.Changed {
				v, _ := cmd.Flags().GetBool("associated")
				opts.associated = &v
			}
			return runNodeList(cmd.Context(), conf, cmd.OutOrStdout(), opts)
		},
	}

	nodeDeleteCmd = &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a node and its NICs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeDelete(cmd.Context(), conf, cmd.OutOrStdout(), args[0])
		},
	}

	nodeReserveCmd = &cobra.Command{
		Use:   "reserve [tag] [node...]",
		Short: "Reserve nodes for tag, all or none",
		Long:  "Reserve every named node for tag in one transaction. Nodes are addressed by id (integers) or by name; a single call may not mix the two.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeReserve(cmd.Context(), conf, cmd.OutOrStdout(), args[0], args[1:])
		},
	}

	nodeReleaseCmd = &cobra.Command{
		Use:   "release [tag] [node...]",
		Short: "Release nodes held by tag, all or none",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeRelease(cmd.Context(), conf, cmd.OutOrStdout(), args[0], args[1:])
		},
	}

	nodeHoldingCmd = &cobra.Command{
		Use:   "holding [tag]",
		Short: "List the nodes reserved by tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeHolding(cmd.Context(), conf, cmd.OutOrStdout(), args[0])
		},
	}
)

func init() {
	nodeCmd.AddCommand(nodeCreateCmd)
	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeDeleteCmd)
	nodeCmd.AddCommand(nodeReserveCmd)
	nodeCmd.AddCommand(nodeReleaseCmd)
	nodeCmd.AddCommand(nodeHoldingCmd)

	f := nodeCreateCmd.Flags()
	f.StringSliceVar(&nodeCreate.macs, "mac", nil, wrapString("MAC address of a NIC to create with the node (repeatable)"))
	f.StringVar(&nodeCreate.state, "state", "", wrapString("Initial provision state"))
	f.StringToStringVar(&nodeCreate.attributes, "attr", nil, wrapString("Attributes as key=value pairs"))

	f = nodeListCmd.Flags()
	f.Bool("reserved", false, wrapString("Only reserved (true) or only unreserved (false) nodes"))
	f.Bool("associated", false, wrapString("Only nodes with (true) or without (false) NICs"))
	f.StringSliceVar(&nodeList.reservedBy, "reserved-by", nil, wrapString("Only nodes reserved by one of these tags"))
	f.StringVar(&nodeList.state, "state", "", wrapString("Only nodes in this provision state"))
	f.DurationVar(&nodeList.olderThan, "older-than", 0, wrapString("Only nodes whose provision state changed longer ago than this"))
	f.IntVar(&nodeList.limit, "limit", 0, wrapString("Maximum number of nodes (0 for no limit)"))
	f.Int64Var(&nodeList.marker, "marker", 0, wrapString("Resume after the node with this id"))
	f.StringVar(&nodeList.sortKey, "sort", query.DefaultSortKey, wrapString("Sort key"))
	f.BoolVar(&nodeList.desc, "desc", false, wrapString("Sort descending"))
}

func runNodeCreate(ctx context.Context, s settings, out io.Writer, name string, opts createOpts) error {
	n := &node.Node{
		Name:           name,
		ProvisionState: opts.state,
		Attributes:     opts.attributes,
	}
	nics := make([]*nic.NIC, 0, len(opts.macs))
	for _, mac := range opts.macs {
		nics = append(nics, &nic.NIC{Address: mac})
	}
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		if err := eng.Store().CreateNode(ctx, n, nics...); err != nil {
			return err
		}
		return printJSON(out, n)
	})
}

func (o listOpts) filters() []node.Filter {
	var fs []node.Filter
	if o.reserved != nil {
		fs = append(fs, node.Reserved(*o.reserved))
	}
	if len(o.reservedBy) > 0 {
		fs = append(fs, node.ReservedByAnyOf(o.reservedBy...))
	}
	if o.state != "" {
		fs = append(fs, node.ProvisionState(o.state))
	}
	if o.olderThan > 0 {
		fs = append(fs, node.ProvisionedBefore(o.olderThan))
	}
	if o.associated != nil {
		fs = append(fs, node.Associated(*o.associated))
	}
	return fs
}

func runNodeList(ctx context.Context, s settings, out io.Writer, opts listOpts) error {
	lo := node.ListOpts{
		Filters: opts.filters(),
		Page: query.Page{
			Limit:   opts.limit,
			Marker:  opts.marker,
			SortKey: opts.sortKey,
		},
	}
	if opts.desc {
		lo.SortDir = query.Desc
	}
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		nodes, err := eng.Store().ListNodes(ctx, lo)
		if err != nil {
			return err
		}
		return printJSON(out, nodes)
	})
}

func runNodeDelete(ctx context.Context, s settings, out io.Writer, name string) error {
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		if err := eng.Store().DestroyNode(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted node %s\n", name)
		return nil
	})
}

func runNodeReserve(ctx context.Context, s settings, out io.Writer, tag string, idents []string) error {
	sel, err := parseSelector(idents)
	if err != nil {
		return err
	}
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		nodes, err := eng.Reservations().Acquire(ctx, tag, sel)
		if err != nil {
			return err
		}
		return printJSON(out, nodes)
	})
}

func runNodeRelease(ctx context.Context, s settings, out io.Writer, tag string, idents []string) error {
	sel, err := parseSelector(idents)
	if err != nil {
		return err
	}
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		if err := eng.Reservations().Release(ctx, tag, sel); err != nil {
			return err
		}
		fmt.Fprintf(out, "released %s from %s\n", sel, tag)
		return nil
	})
}

func runNodeHolding(ctx context.Context, s settings, out io.Writer, tag string) error {
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		nodes, err := eng.Reservations().Holding(ctx, tag)
		if err != nil {
			return err
		}
		return printJSON(out, nodes)
	})
}

// parseSelector turns command-line identities into a selector. Integers
// select by id, anything else by name. Mixing the two is rejected.
func parseSelector(idents []string) (node.Selector, error) {
	var (
		ids   []int64
		names []string
	)
	for _, s := range idents {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		names = append(names, s)
	}
	if len(ids) > 0 && len(names) > 0 {
		return node.Selector{}, warden.InvalidParameter("cannot mix node ids and names in one call")
	}
	sel := node.ByNames(names...)
	if len(ids) > 0 {
		sel = node.ByIDs(ids...)
	}
	return sel, sel.Validate()
}
