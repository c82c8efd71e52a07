package blend

import (
	"context"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"k8s.io/utils/ptr"

	"github.com/iwvelando/blend-optimizer/internal/milp"
)

// randomCharge draws a charge where each element is absent one time in four.
func randomCharge(rnd *rand.Rand) Composition {
	c := Composition{}
	for _, e := range Elements {
		if rnd.Intn(4) == 0 {
			c[e] = 0
			continue
		}
		c[e] = float64(rnd.Intn(10000)) / 100
	}
	return c
}

var _ = Describe("Randomized properties", func() {
	var (
		ctx    context.Context
		params Params
		opt    *Optimizer
		rnd    *rand.Rand
	)

	BeforeEach(func() {
		ctx = context.Background()
		params = DefaultParams()
		opt = NewOptimizer(zap.NewNop(), params, milp.NewBranchAndBound(), milp.Options{})
		rnd = rand.New(rand.NewSource(20261018))
	})

	It("always reaches the target of an optimise request", func() {
		for i := 0; i < 100; i++ {
			current := randomCharge(rnd)
			target := 1 + float64(rnd.Intn(39900))/100
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationOptimiseMixture,
				Current:      current,
				TargetWeight: ptr.To(target),
			})
			Expect(err).NotTo(HaveOccurred(), "%s -> %g", current, target)
			Expect(res.Status).To(Equal(StatusOptimal), "%s -> %g", current, target)
			Expect(res.FinalComposition.Total()).To(BeNumerically("~", target, massTol), "%s -> %g", current, target)
			expectCanonicalRatio(params, res.FinalComposition)
			expectWithinCap(params, current, res)
			for e, removed := range res.Removals {
				Expect(removed).To(BeNumerically("<=", current[e]+massTol), "removal of %s", e)
			}

			// Draining everything but C and producing C is always possible,
			// so the optimum can never cost more.
			drain := params.Price(ElementC).Extraction * target
			for e, mass := range current {
				drain += params.Price(e).Extraction * mass
			}
			Expect(res.Cost()).To(BeNumerically("<=", drain+massTol), "%s -> %g", current, target)
		}
	})

	It("prices a new blend linearly in its weight", func() {
		perKg := 0.0
		for _, e := range Elements {
			perKg += params.Price(e).Extraction * params.RatioOf(e) / 10
		}
		for i := 0; i < 60; i++ {
			target := 0.5 + float64(rnd.Intn(99950))/100
			res, err := opt.Optimize(ctx, Request{Operation: OperationNewBlend, TargetWeight: ptr.To(target)})
			Expect(err).NotTo(HaveOccurred(), "target %g", target)
			Expect(res.Status).To(Equal(StatusOptimal), "target %g", target)
			Expect(res.FinalComposition.Total()).To(BeNumerically("~", target, massTol))
			Expect(res.FinalComposition.Present()).To(HaveLen(len(Elements)))
			expectCanonicalRatio(params, res.FinalComposition)
			Expect(res.Cost()).To(BeNumerically("~", perKg*target, massTol*(1+target)), "target %g", target)
		}
	})

	It("tops up an on-ratio charge to any target within the cap", func() {
		for i := 0; i < 60; i++ {
			k := 1 + float64(rnd.Intn(9900))/100
			current := Composition{ElementA: 4 * k, ElementB: 3 * k, ElementC: 2 * k, ElementD: k}
			target := 10 * k * (1 + 0.15*rnd.Float64())
			res, err := opt.Optimize(ctx, Request{
				Operation:    OperationRefuel,
				Current:      current,
				TargetWeight: ptr.To(target),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(StatusOptimal), "%s -> %g", current, target)
			Expect(res.FinalComposition.Total()).To(BeNumerically("~", target, massTol))
			Expect(res.Removals).To(BeEmpty())
			Expect(res.Extractions).To(BeEmpty())
			expectWithinCap(params, current, res)
			expectCanonicalRatio(params, res.FinalComposition)
		}
	})

	It("keeps every refuel invariant whenever a plan exists", func() {
		for i := 0; i < 60; i++ {
			current := randomCharge(rnd)
			if current.Total() <= 0 {
				continue
			}
			res, err := opt.Optimize(ctx, Request{Operation: OperationRefuel, Current: current})
			Expect(err).NotTo(HaveOccurred(), "%s", current)
			Expect(res.Status).To(BeElementOf(StatusOptimal, StatusInfeasible), "%s", current)
			if !res.Optimal() {
				continue
			}
			expectWithinCap(params, current, res)
			expectCanonicalRatio(params, res.FinalComposition)
			for _, e := range Elements {
				if current[e] == 0 {
					Expect(res.Additions).NotTo(HaveKey(e))
				}
				Expect(res.FinalComposition[e]).To(BeNumerically(">=", current[e]-massTol))
			}
		}
	})
})
