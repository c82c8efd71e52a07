package blend

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"k8s.io/utils/ptr"

	"github.com/iwvelando/blend-optimizer/internal/milp"
)

const massTol = 1e-4

// expectCanonicalRatio checks every pair of present elements against the
// canonical ratio.
func expectCanonicalRatio(params Params, c Composition) {
	present := c.Present()
	for i := range present {
		for j := i + 1; j < len(present); j++ {
			ei, ej := present[i], present[j]
			Expect(c[ei]*params.RatioOf(ej)).To(BeNumerically("~", c[ej]*params.RatioOf(ei), massTol),
				"ratio %s:%s in %s", ei, ej, c)
		}
	}
}

func expectWithinCap(params Params, current Composition, res *Result) {
	for e, added := range res.Additions {
		Expect(added).To(BeNumerically("<=", params.MaxRefuelPercentage()*current[e]+massTol), "addition of %s", e)
	}
}

func expectComposition(got Composition, want Composition) {
	for _, e := range Elements {
		Expect(got[e]).To(BeNumerically("~", want[e], massTol), "element %s", e)
	}
}

var _ = Describe("Optimizer", func() {
	var (
		ctx    context.Context
		params Params
		opt    *Optimizer
	)

	BeforeEach(func() {
		ctx = context.Background()
		params = DefaultParams()
		opt = NewOptimizer(zap.NewNop(), params, milp.NewBranchAndBound(), milp.Options{})
	})

	Context("refuel", func() {
		It("tops up an on-ratio charge to the target keeping the ratio", func() {
			current := Composition{ElementA: 40, ElementB: 30, ElementC: 20, ElementD: 10}
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationRefuel,
				Current:      current,
				TargetWeight: ptr.To(110.0),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal))
			Expect(res.Additions.Total()).To(BeNumerically("~", 10, massTol))
			expectComposition(res.Additions, Composition{ElementA: 4, ElementB: 3, ElementC: 2, ElementD: 1})
			expectComposition(res.FinalComposition, Composition{ElementA: 44, ElementB: 33, ElementC: 22, ElementD: 11})
			expectWithinCap(params, current, res)
			expectCanonicalRatio(params, res.FinalComposition)
			Expect(res.Cost()).To(BeNumerically("~", 107, massTol))
			Expect(res.Removals).To(BeEmpty())
			Expect(res.Extractions).To(BeEmpty())
		})

		It("adds only the deficient element of an off-ratio charge", func() {
			current := Composition{ElementA: 40, ElementB: 30, ElementC: 20, ElementD: 9}
			res, err := opt.Optimize(ctx, Request{Operation: OperationRefuel, Current: current})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal))
			expectComposition(res.Additions, Composition{ElementD: 1})
			Expect(res.Cost()).To(BeNumerically("~", 15, massTol))
			expectCanonicalRatio(params, res.FinalComposition)
		})

		It("adds nothing to an on-ratio charge without a target", func() {
			current := Composition{ElementA: 40, ElementB: 30, ElementC: 20, ElementD: 10}
			res, err := opt.Optimize(ctx, Request{Operation: OperationRefuel, Current: current})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal))
			Expect(res.Additions).To(BeEmpty())
			Expect(res.Cost()).To(BeNumerically("~", 0, massTol))
			expectComposition(res.FinalComposition, current)
		})

		It("reports a target beyond the cap as infeasible", func() {
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationRefuel,
				Current:      Composition{ElementA: 40, ElementB: 30, ElementC: 20, ElementD: 10},
				TargetWeight: ptr.To(120.0),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusInfeasible))
			Expect(res.TotalCost).To(BeNil())
			Expect(res.FinalComposition).To(BeEmpty())
		})

		It("never tops up an absent element", func() {
			current := Composition{ElementA: 40, ElementB: 30, ElementC: 20}
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationRefuel,
				Current:      current,
				TargetWeight: ptr.To(99.0),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal))
			Expect(res.Additions).NotTo(HaveKey(ElementD))
			Expect(res.FinalComposition[ElementD]).To(BeZero())
			expectWithinCap(params, current, res)
			expectCanonicalRatio(params, res.FinalComposition)
		})
	})

	Context("new_blend", func() {
		It("produces the full canonical blend from scratch", func() {
			res, err := opt.Optimize(ctx, Request{Operation: OperationNewBlend, TargetWeight: ptr.To(80.0)})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal))
			want := Composition{ElementA: 32, ElementB: 24, ElementC: 16, ElementD: 8}
			expectComposition(res.FinalComposition, want)
			expectComposition(res.Extractions, want)
			Expect(res.Additions).To(BeEmpty())
			Expect(res.Removals).To(BeEmpty())
			Expect(res.Cost()).To(BeNumerically("~", 424, massTol))
		})

		It("honours an explicit subset of required elements", func() {
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationNewBlend,
				TargetWeight: ptr.To(30.0),
				Require:      []Element{ElementA, ElementC},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal))
			Expect(res.FinalComposition[ElementA]).To(BeNumerically(">", 0))
			Expect(res.FinalComposition[ElementC]).To(BeNumerically(">", 0))
			Expect(res.FinalComposition.Total()).To(BeNumerically("~", 30, massTol))
			expectCanonicalRatio(params, res.FinalComposition)
		})
	})

	Context("optimise_mixture", func() {
		It("removes mass in ratio to reach a lower target", func() {
			current := Composition{ElementA: 60, ElementB: 45, ElementC: 30, ElementD: 15}
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationOptimiseMixture,
				Current:      current,
				TargetWeight: ptr.To(120.0),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal))
			expectComposition(res.FinalComposition, Composition{ElementA: 48, ElementB: 36, ElementC: 24, ElementD: 12})
			expectComposition(res.Removals, Composition{ElementA: 12, ElementB: 9, ElementC: 6, ElementD: 3})
			Expect(res.Cost()).To(BeNumerically("~", 159, massTol))

			pureRemoval := 0.0
			for e, mass := range res.Removals {
				pureRemoval += params.Price(e).Extraction * mass
			}
			Expect(res.Cost()).To(BeNumerically("<=", pureRemoval+massTol))
		})

		It("synthesizes a required element that is absent from the charge", func() {
			current := Composition{ElementA: 40, ElementB: 30, ElementC: 20, ElementD: 0}
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationOptimiseMixture,
				Current:      current,
				TargetWeight: ptr.To(100.0),
				Require:      []Element{ElementD},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal))
			Expect(res.Additions).NotTo(HaveKey(ElementD))
			Expect(res.Extractions[ElementD]).To(BeNumerically("~", 10, massTol))
			expectComposition(res.FinalComposition, Composition{ElementA: 40, ElementB: 30, ElementC: 20, ElementD: 10})
			Expect(res.Cost()).To(BeNumerically("~", 70, massTol))
		})

		It("treats auto as an alias", func() {
			current := Composition{ElementA: 60, ElementB: 45, ElementC: 30, ElementD: 15}
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationAuto,
				Current:      current,
				TargetWeight: ptr.To(120.0),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Operation).To(Equal(OperationOptimiseMixture))
			Expect(res.Cost()).To(BeNumerically("~", 159, massTol))
		})

		It("builds from an explicitly empty vessel", func() {
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationOptimiseMixture,
				Current:      Composition{},
				TargetWeight: ptr.To(80.0),
				Require:      Elements,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal))
			Expect(res.Cost()).To(BeNumerically("~", 424, massTol))
		})

		It("keeps the target weight whichever strategy wins", func() {
			for _, target := range []float64{90, 120, 150, 170} {
				current := Composition{ElementA: 60, ElementB: 45, ElementC: 30, ElementD: 15}
				res, err := opt.Optimize(ctx, Request{
					Operation:    OperationOptimiseMixture,
					Current:      current,
					TargetWeight: ptr.To(target),
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Status).To(Equal(StatusOptimal), "target %g", target)
				Expect(res.FinalComposition.Total()).To(BeNumerically("~", target, massTol))
				expectWithinCap(params, current, res)
				expectCanonicalRatio(params, res.FinalComposition)
			}
		})
	})

	Context("properties", func() {
		It("is idempotent for the same request", func() {
			req := Request{
				Operation:    OperationOptimiseMixture,
				Current:      Composition{ElementA: 60, ElementB: 45, ElementC: 30, ElementD: 15},
				TargetWeight: ptr.To(130.0),
			}
			first, err := opt.Optimize(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			second, err := opt.Optimize(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Cost()).To(BeNumerically("~", first.Cost(), massTol))
			expectComposition(second.FinalComposition, first.FinalComposition)
		})

		It("never gets cheaper when a new blend grows", func() {
			previous := 0.0
			for _, target := range []float64{10, 40, 80, 160} {
				res, err := opt.Optimize(ctx, Request{Operation: OperationNewBlend, TargetWeight: ptr.To(target)})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Cost()).To(BeNumerically(">=", previous-massTol))
				previous = res.Cost()
			}
		})

		It("picks up overridden prices", func() {
			spec := DefaultSpec()
			spec.Prices[ElementD] = Price{Addition: 150, Extraction: 70}
			custom, err := NewParams(spec)
			Expect(err).NotTo(HaveOccurred())

			res, err := NewOptimizer(nil, custom, nil, milp.Options{}).Optimize(ctx, Request{
				Operation:    OperationNewBlend,
				TargetWeight: ptr.To(80.0),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Cost()).To(BeNumerically("~", 160+144+64+560, massTol))
		})
	})

	Context("price sensitivity", func() {
		references := []struct {
			name string
			req  Request
		}{
			{"refuel", Request{
				Operation:    OperationRefuel,
				Current:      Composition{ElementA: 40, ElementB: 30, ElementC: 20, ElementD: 10},
				TargetWeight: ptr.To(110.0),
			}},
			{"new_blend", Request{Operation: OperationNewBlend, TargetWeight: ptr.To(80.0)}},
			{"optimise_mixture", Request{
				Operation:    OperationOptimiseMixture,
				Current:      Composition{ElementA: 60, ElementB: 45, ElementC: 30, ElementD: 15},
				TargetWeight: ptr.To(120.0),
			}},
		}

		solveWith := func(spec ParamsSpec, req Request) float64 {
			custom, err := NewParams(spec)
			Expect(err).NotTo(HaveOccurred())
			res, err := NewOptimizer(nil, custom, nil, milp.Options{}).Optimize(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal), "%s", req.Operation)
			return res.Cost()
		}

		It("never gets cheaper when a single price rises", func() {
			for _, ref := range references {
				base := solveWith(DefaultSpec(), ref.req)
				for _, e := range Elements {
					for _, step := range []float64{1, 10} {
						raisedAddition := DefaultSpec()
						p := raisedAddition.Prices[e]
						p.Addition += step
						raisedAddition.Prices[e] = p
						Expect(solveWith(raisedAddition, ref.req)).To(BeNumerically(">=", base-massTol),
							"%s: addition price of %s +%g", ref.name, e, step)

						raisedExtraction := DefaultSpec()
						p = raisedExtraction.Prices[e]
						p.Extraction += step
						raisedExtraction.Prices[e] = p
						Expect(solveWith(raisedExtraction, ref.req)).To(BeNumerically(">=", base-massTol),
							"%s: extraction price of %s +%g", ref.name, e, step)
					}
				}
			}
		})
	})

	Context("solve time", func() {
		It("solves every reference request well under 100ms", func() {
			requests := []Request{
				{Operation: OperationRefuel, Current: Composition{ElementA: 40, ElementB: 30, ElementC: 20, ElementD: 10}, TargetWeight: ptr.To(110.0)},
				{Operation: OperationRefuel, Current: Composition{ElementA: 40, ElementB: 30, ElementC: 20, ElementD: 9}},
				{Operation: OperationNewBlend, TargetWeight: ptr.To(80.0)},
				{Operation: OperationOptimiseMixture, Current: Composition{ElementA: 60, ElementB: 45, ElementC: 30, ElementD: 15}, TargetWeight: ptr.To(120.0)},
				{Operation: OperationOptimiseMixture, Current: Composition{ElementA: 40, ElementB: 30, ElementC: 20}, TargetWeight: ptr.To(100.0), Require: []Element{ElementD}},
			}
			for _, req := range requests {
				// Fastest of five runs.
				fastest := time.Duration(1<<63 - 1)
				for run := 0; run < 5; run++ {
					start := time.Now()
					res, err := opt.Optimize(ctx, req)
					elapsed := time.Since(start)
					Expect(err).NotTo(HaveOccurred())
					Expect(res.Status).To(Equal(StatusOptimal))
					if elapsed < fastest {
						fastest = elapsed
					}
				}
				Expect(fastest).To(BeNumerically("<", 100*time.Millisecond), "%s", req.Operation)
			}
		})
	})

	Context("invalid input", func() {
		It("rejects a negative mass before building a model", func() {
			_, err := opt.Optimize(ctx, Request{
				Operation:    OperationRefuel,
				Current:      Composition{ElementA: -1, ElementB: 30},
				TargetWeight: ptr.To(50.0),
			})
			Expect(errors.Is(err, ErrInvalidInput)).To(BeTrue())
			var invalid *InvalidInputError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.Field).To(Equal("initial_composition"))
		})

		It("rejects a zero target for a new blend", func() {
			_, err := opt.Optimize(ctx, Request{Operation: OperationNewBlend, TargetWeight: ptr.To(0.0)})
			Expect(err).To(MatchError(ErrInvalidInput))
		})
	})

	Context("time limit", func() {
		It("reports TimeLimit when the deadline has already passed", func() {
			deadline, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
			defer cancel()

			res, err := opt.Optimize(deadline, Request{Operation: OperationNewBlend, TargetWeight: ptr.To(80.0)})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusTimeLimit))
			Expect(res.TotalCost).To(BeNil())
		})
	})
})
