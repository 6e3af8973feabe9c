package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthands/expand/internal/core/aggregate"
	"github.com/agenthands/expand/internal/core/common"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/core/querier"
	"github.com/agenthands/expand/internal/core/querygraph"
	"github.com/agenthands/expand/internal/core/response"
	"github.com/agenthands/expand/internal/server"
)

func newOneHopCmd(a *app) *cobra.Command {
	var kps []string

	cmd := &cobra.Command{
		Use:   "one-hop <query-graph.json|->",
		Short: "Send a one-hop query graph to one or more KPs",
		Long:  `Sends the query graph to each --kp (every configured KP when none is given), merges the answers and prints the knowledge graph, the edge-to-nodes binding map and the query log as JSON.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qg, err := readQueryGraph(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := a.expander(ctx)
			if err != nil {
				return err
			}
			defer e.Close(ctx)

			resp := response.New(a.log)
			var (
				kg        *aggregate.KnowledgeGraph
				bindings  querier.BindingMap
				answerErr error
			)
			if len(kps) == 1 {
				kg, bindings, answerErr = e.AnswerOneHop(ctx, kps[0], qg, resp)
			} else {
				kg, bindings, answerErr = e.AnswerOneHopAcrossKPs(ctx, kps, qg, resp)
			}
			if err := a.print(server.NewAnswer(resp, kg, bindings)); err != nil {
				return err
			}
			return answerErr
		},
	}
	cmd.Flags().StringSliceVar(&kps, "kp", nil, "KP to query; repeat for several")
	return cmd
}

func newSingleNodeCmd(a *app) *cobra.Command {
	var kpName string

	cmd := &cobra.Command{
		Use:   "single-node <query-graph.json|->",
		Short: "Look up the curies of a single-node query graph in a KP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if kpName == "" {
				return fmt.Errorf("a --kp must be provided")
			}
			qg, err := readQueryGraph(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := a.expander(ctx)
			if err != nil {
				return err
			}
			defer e.Close(ctx)

			resp := response.New(a.log)
			kg, answerErr := e.AnswerSingleNode(ctx, kpName, qg, resp)
			if err := a.print(server.NewAnswer(resp, kg, nil)); err != nil {
				return err
			}
			return answerErr
		},
	}
	cmd.Flags().StringVar(&kpName, "kp", "", "KP to query (required)")
	_ = cmd.MarkFlagRequired("kp")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var kgFile string

	cmd := &cobra.Command{
		Use:   "check <query-graph.json|->",
		Short: "Report connectivity and fulfillment of a query graph",
		Long:  `Prints whether the query graph is connected, its connected components and, given --kg with a flat knowledge graph whose items list their qnode_keys/qedge_keys, which query keys are still unfulfilled.`,
		Args:  cobra.ExactArgs(1),
		// no KP or normalizer is needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			qg, err := readQueryGraph(args[0])
			if err != nil {
				return err
			}
			kg := aggregate.New()
			if kgFile != "" {
				data, err := readInput(kgFile)
				if err != nil {
					return err
				}
				flat, err := common.ParseJSON[model.KnowledgeGraph](data)
				if err != nil {
					return fmt.Errorf("failed to parse knowledge graph from %s: %w", kgFile, err)
				}
				kg = aggregate.FromFlat(flat)
			}
			return a.print(querygraph.Check(qg, kg))
		},
	}
	cmd.Flags().StringVar(&kgFile, "kg", "", "flat knowledge graph to check fulfillment against")
	return cmd
}
