package compiler

import (
	"errors"
	"fmt"
	"strings"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chazu/jasm/pkg/bytecode"
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/version"
)

func source(lines ...string) string { return strings.Join(lines, "\n") + "\n" }

func withSeverity(r *Result, sev diag.Severity) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, d := range r.Log.Diagnostics() {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

func messagesOf(ds []diag.Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message
	}
	return out
}

func opNames(b *bytecode.MethodBody) []string {
	var out []string
	for _, in := range b.Code {
		if !in.IsLabel() {
			out = append(out, in.Op)
		}
	}
	return out
}

func frameOf(b *bytecode.MethodBody, name string) bytecode.FrameEntry {
	for _, f := range b.Frames {
		if f.Label == name {
			return f
		}
	}
	Fail(fmt.Sprintf("no frame committed at %s", name))
	return bytecode.FrameEntry{}
}

func opArgs(b *bytecode.MethodBody, op string) []bytecode.Arg {
	for _, in := range b.Code {
		if in.Op == op {
			return in.Args
		}
	}
	Fail(fmt.Sprintf("no %s in body", op))
	return nil
}

var _ = Describe("Assembler", func() {
	var (
		mockCtrl    *gomock.Controller
		mockEmitter *MockEmitter
		opts        Options
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockEmitter = NewMockEmitter(mockCtrl)
		opts = Options{Emitter: mockEmitter}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	assemble := func(src string) *Result {
		res, err := Assemble("T.j", src, opts)
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	Context("straight-line code", func() {
		It("should compute the stack maximum and emit the body", func() {
			var emitted []*bytecode.MethodBody
			mockEmitter.EXPECT().
				Emit(gomock.Any()).
				DoAndReturn(func(b *bytecode.MethodBody) error {
					emitted = append(emitted, b)
					return nil
				})

			res := assemble(source(
				".class public Calc",
				".super java/lang/Object",
				".method public static three()I",
				"  iconst_1",
				"  iconst_2",
				"  iadd",
				"  ireturn",
				".end method",
			))

			Expect(res.OK()).To(BeTrue())
			Expect(res.Log.Diagnostics()).To(BeEmpty())
			Expect(res.Class).To(Equal("Calc"))
			Expect(res.Super).To(Equal("java/lang/Object"))
			Expect(emitted).To(HaveLen(1))

			b := emitted[0]
			Expect(b.Class).To(Equal("Calc"))
			Expect(b.Name).To(Equal("three"))
			Expect(b.MaxStack).To(Equal(2))
			Expect(b.MaxLocals).To(Equal(0))
			Expect(opNames(b)).To(Equal([]string{"iconst_1", "iconst_2", "iadd", "ireturn"}))
			Expect(b.Code[0].Line).To(Equal(4))
		})

		It("should wrap emitter failures", func() {
			mockEmitter.EXPECT().Emit(gomock.Any()).Return(errors.New("disk full"))

			_, err := Assemble("T.j", source(
				".method static three()I",
				"  iconst_3",
				"  ireturn",
				".end method",
			), opts)

			Expect(err).To(MatchError("compiler: emit three: disk full"))
		})

		It("should simulate field access and calls", func() {
			mockEmitter.EXPECT().Emit(gomock.Any()).Times(2)

			res := assemble(source(
				".class Point",
				".method public getX()I",
				"  aload_0",
				"  getfield Point/x I",
				"  ireturn",
				".end method",
				".method public static make(II)LPoint;",
				"  new Point",
				"  dup",
				"  iload_0",
				"  iload_1",
				"  invokespecial Point/<init>(II)V",
				"  areturn",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			Expect(res.Body("getX").MaxLocals).To(Equal(1))
			mk := res.Body("make")
			Expect(mk.MaxStack).To(Equal(4))
			Expect(mk.MaxLocals).To(Equal(2))
			Expect(opArgs(mk, "invokespecial")).To(Equal([]bytecode.Arg{
				{Text: "Point/<init>"}, {Text: "(II)V"},
			}))
		})

		It("should check the invokeinterface argument count", func() {
			res := assemble(source(
				".method static size(Ljava/util/List;)I",
				"  aload_0",
				"  invokeinterface java/util/List/size()I 2",
				"  ireturn",
				".end method",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(ContainElement(
				"invokeinterface: argument count 2 does not match descriptor (1)"))
		})

		It("should report a return that does not match the descriptor", func() {
			res := assemble(source(
				".method static m()I",
				"  return",
				".end method",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(Equal([]string{
				"return does not match return type I of m()I",
			}))
		})
	})

	Context("control flow", func() {
		It("should commit agreeing frames at a join", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static choose(I)I",
				"  iload_0",
				"  ifeq Zero",
				"  iconst_1",
				"  goto Join",
				"Zero:",
				"  iconst_2",
				"Join:",
				"  ireturn",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			b := res.Body("choose")
			Expect(frameOf(b, "Join").Stack).To(Equal("[I]"))
			Expect(frameOf(b, "Zero").Stack).To(Equal("[]"))
			Expect(frameOf(b, "Zero").Locals).To(Equal("[I]"))
		})

		It("should not compare a label's frame with the one left by a transfer", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static pick(I)Ljava/lang/Object;",
				".catch all from A to B using H",
				"A:",
				"  iload_0",
				"  ifeq Else",
				"  iconst_0",
				"  goto Join",
				"Else:",
				"  iconst_1",
				"Join:",
				"  pop",
				"  aconst_null",
				"B:",
				"  areturn",
				"H:",
				"  areturn",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			b := res.Body("pick")
			Expect(frameOf(b, "Join").Stack).To(Equal("[I]"))
			Expect(frameOf(b, "Else").Stack).To(Equal("[]"))
			Expect(frameOf(b, "H").Stack).To(Equal("[A]"))
		})

		It("should warn once when locals diverge at a join", func() {
			opts.Classes = map[diag.Class]bool{diag.UnusedLocal: false}
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static pick(I)I",
				"  iload_0",
				"  ifeq Else",
				"  iconst_1",
				"  istore_1",
				"  goto Join",
				"Else:",
				"  aconst_null",
				"  astore_1",
				"Join:",
				"  iload_0",
				"  ireturn",
				".end method",
			))

			warnings := withSeverity(res, diag.Warning)
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0].Pos.Line).To(Equal(10))
			Expect(warnings[0].Message).To(ContainSubstring("locals merge at label Join"))
			Expect(res.OK()).To(BeTrue())
			Expect(frameOf(res.Body("pick"), "Join").Locals).To(Equal("[IX]"))
		})

		It("should reject a handler reached with a value on the stack", func() {
			res := assemble(source(
				".method static guard()V",
				".catch java/lang/Exception from Start to End using Handler",
				"Start:",
				"  iconst_0",
				"  pop",
				"End:",
				"  iconst_1",
				"Handler:",
				"  pop",
				"  return",
				".end method",
			))

			errs := withSeverity(res, diag.Error)
			Expect(errs).To(HaveLen(1))
			Expect(errs[0].Message).To(ContainSubstring("stack mismatch at label Handler"))
			Expect(errs[0].Pos.Line).To(Equal(8))
			Expect(frameOf(res.Body("guard"), "Handler").Stack).To(Equal("[X]"))
			Expect(res.Body("guard").Catches).To(Equal([]bytecode.CatchEntry{
				{From: "Start", To: "End", Handler: "Handler", Type: "java/lang/Exception"},
			}))
		})

		It("should list every use of an undefined label", func() {
			res := assemble(source(
				".method static m()V",
				"  iconst_0",
				"  ifeq Nowhere",
				"  iconst_0",
				"  ifeq Nowhere",
				"  return",
				".end method",
			))

			errs := withSeverity(res, diag.Error)
			Expect(errs).To(HaveLen(1))
			Expect(errs[0].Message).To(Equal("label Nowhere is not defined (used at lines 3, 5)"))
			Expect(errs[0].Pos.Line).To(Equal(3))
		})

		It("should assemble both switch forms", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static sw(I)I",
				"  iload_0",
				"  tableswitch 0 A B default: C",
				"A:",
				"  iload_0",
				"  lookupswitch 10: B 1: C default: B",
				"B:",
				"  iconst_2",
				"  ireturn",
				"C:",
				"  iconst_0",
				"  ireturn",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			b := res.Body("sw")
			Expect(opArgs(b, "tableswitch")).To(Equal([]bytecode.Arg{
				{Int: 0}, {Label: "C"}, {Label: "A"}, {Label: "B"},
			}))
			Expect(opArgs(b, "lookupswitch")).To(Equal([]bytecode.Arg{
				{Label: "B"}, {Int: 1, Label: "C"}, {Int: 10, Label: "B"},
			}))
		})

		It("should reject duplicate lookupswitch keys", func() {
			res := assemble(source(
				".method static sw(I)V",
				"  iload_0",
				"  lookupswitch 1: A 1: A default: A",
				"A:",
				"  return",
				".end method",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(ContainElement("lookupswitch: duplicate key 1"))
		})

		It("should expand compare-and-branch macros", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static less(JJ)Z",
				"  lload_0",
				"  lload_2",
				"  if_lcmplt Yes",
				"  iconst_0",
				"  ireturn",
				"Yes:",
				"  iconst_1",
				"  ireturn",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			b := res.Body("less")
			Expect(opNames(b)).To(Equal([]string{
				"lload_0", "lload_2", "lcmp", "iflt", "iconst_0", "ireturn", "iconst_1", "ireturn",
			}))
			Expect(b.MaxStack).To(Equal(4))
			Expect(b.MaxLocals).To(Equal(4))
		})
	})

	Context("unreachable code", func() {
		It("should drop unreachable instructions with a warning", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static m()V",
				"  return",
				"  iconst_0",
				".end method",
			))

			Expect(res.OK()).To(BeTrue())
			Expect(messagesOf(withSeverity(res, diag.Warning))).To(Equal([]string{"unreachable iconst_0 dropped"}))
			Expect(opNames(res.Body("m"))).To(Equal([]string{"return"}))
		})

		It("should reject an unreachable transfer", func() {
			res := assemble(source(
				".method static m()V",
				"  return",
				"  return",
				".end method",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(Equal([]string{"unreachable return"}))
		})

		It("should skip .ifreachable blocks after a transfer", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static m()V",
				"  return",
				".ifreachable",
				"  iconst_0",
				"  pop",
				".endif",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			Expect(opNames(res.Body("m"))).To(Equal([]string{"return"}))
		})

		It("should assemble .ifreachable blocks that are reached", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static m()V",
				".ifreachable",
				"  iconst_0",
				"  pop",
				".endif",
				"  return",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			Expect(opNames(res.Body("m"))).To(Equal([]string{"iconst_0", "pop", "return"}))
		})
	})

	DescribeTable("completeness at .end method",
		func(body []string, want string) {
			lines := append([]string{".method static m()V"}, body...)
			lines = append(lines, ".end method")
			res := assemble(source(lines...))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(Equal([]string{want}))
		},
		Entry("no code", []string{}, "method m has no code"),
		Entry("falls off the end", []string{"  iconst_0", "  pop"}, "control falls off the end of method m"),
		Entry("trailing label", []string{"  return", "Done:"}, "method m ends on label Done with no instruction after it"),
		Entry("trailing .line", []string{"  return", ".line 7"}, "method m ends on a .line directive"),
	)

	It("should accept abstract methods without code", func() {
		mockEmitter.EXPECT().Emit(gomock.Any())

		res := assemble(source(
			".method public abstract run()V",
			".end method",
		))

		Expect(res.Log.Diagnostics()).To(BeEmpty())
	})

	Context("directive state machine", func() {
		DescribeTable("illegal directives",
			func(body []string, want string) {
				lines := append([]string{".method static m()V"}, body...)
				lines = append(lines, ".end method")
				res := assemble(source(lines...))

				Expect(messagesOf(withSeverity(res, diag.Error))).To(ContainElement(want))
			},
			Entry(".limit after code", []string{"  nop", ".limit stack 2", "  return"}, ".limit not allowed in code"),
			Entry(".typeanno outside a catch", []string{".typeanno visible Lx;", "  return"}, ".typeanno not allowed in header"),
			Entry("instruction in a frame block", []string{"L:", ".stack", "  nop", ".end stack", "  return"},
				"instruction not allowed in stack frame block"),
			Entry("label in a reachable-if block", []string{".ifreachable", "L:", ".endif", "  return"},
				"label not allowed in reachable-if block"),
			Entry("unknown directive", []string{".bogus 1", "  return"}, "unknown directive .bogus 1"),
			Entry("unclosed frame block", []string{"  return", "L:", ".stack"}, ".stack without .end stack"),
			Entry("unclosed reachable-if", []string{"  return", ".ifreachable"}, ".ifreachable without .endif"),
		)

		It("should close a catch block at the next directive", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static m()V",
				".catch all from A to B using H",
				".typeanno visible LNonNull;",
				".limit stack 1",
				"A:",
				"  nop",
				"B:",
				"  return",
				"H:",
				"  athrow",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			Expect(res.Body("m").Catches[0].Type).To(BeEmpty())
		})

		It("should install declared frames", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static m(I)V",
				"  iload_0",
				"  ifeq L",
				"  return",
				"L:",
				".stack",
				"  locals Integer",
				".end stack",
				"  return",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			f := frameOf(res.Body("m"), "L")
			Expect(f.Locals).To(Equal("[I]"))
			Expect(f.Stack).To(Equal("[]"))
		})

		It("should check earlier arrivals against a declared frame", func() {
			res := assemble(source(
				".method static m(I)V",
				"  iload_0",
				"  ifeq L",
				"  return",
				"L:",
				".stack",
				"  stack Integer",
				".end stack",
				"  pop",
				"  return",
				".end method",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(ContainElement(
				"stack [] does not match declared frame [I] at label L"))
		})

		It("should reject .stack without a label", func() {
			res := assemble(source(
				".method static m()V",
				"  nop",
				".stack",
				".end stack",
				"  return",
				".end method",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(Equal([]string{".stack must directly follow a label"}))
		})

		It("should record local variable entries", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static m(I)V",
				".var 0 is count I from A to B",
				"A:",
				"  iload_0",
				"  pop",
				"B:",
				"  return",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			Expect(res.Body("m").Vars).To(Equal([]bytecode.VarEntry{
				{Index: 0, Name: "count", Desc: "I", From: "A", To: "B"},
			}))
		})

		It("should report a method without .end method", func() {
			res := assemble(source(
				".method static m()V",
				"  return",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(Equal([]string{"method m has no .end method"}))
			Expect(res.Body("m")).NotTo(BeNil())
		})

		It("should reject code outside a method", func() {
			res := assemble(source(
				"  nop",
				".end method",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(Equal([]string{
				"nop outside a method",
				".end method outside a method",
			}))
		})
	})

	Context("local variables and encodings", func() {
		It("should keep going after reading a local beyond the ceiling", func() {
			res := assemble(source(
				".method static far()V",
				".limit locals 5",
				"  iload 10000",
				"  pop",
				"  return",
				".end method",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(Equal([]string{"local 10000 read before any store"}))
			Expect(messagesOf(withSeverity(res, diag.Warning))).To(Equal([]string{
				"declared ceiling lower than required: .limit locals 5, need 10001",
			}))
			Expect(res.Body("far").MaxLocals).To(Equal(10001))
			Expect(res.Body("far").MaxStack).To(Equal(1))
		})

		It("should select the shortest encoding", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static enc()V",
				"  iconst_0",
				"  istore 2",
				"  iload 2",
				"  istore 300",
				"  iinc 300 1000",
				"  iload 300",
				"  pop",
				"  return",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			b := res.Body("enc")
			Expect(opNames(b)).To(Equal([]string{
				"iconst_0", "istore_2", "iload_2", "istore_w", "iinc_w", "iload_w", "pop", "return",
			}))
			Expect(opArgs(b, "iinc_w")).To(Equal([]bytecode.Arg{{Int: 300}, {Int: 1000}}))
			Expect(b.MaxLocals).To(Equal(301))
		})

		It("should fall back to the generic form where compact forms are unavailable", func() {
			ops := bytecode.Entries()
			for i := range ops {
				if ops[i].Base == "istore" && ops[i].Implied >= 0 {
					ops[i].Feature = version.Since("compact-store", version.V5)
				}
			}
			cat, err := bytecode.NewCatalog(ops)
			Expect(err).NotTo(HaveOccurred())

			opts.Catalog = cat
			opts.Classes = map[diag.Class]bool{diag.UnusedLocal: false}
			src := source(
				".method static keep(I)V",
				"  iload_0",
				"  istore 2",
				"  return",
				".end method",
			)

			mockEmitter.EXPECT().Emit(gomock.Any()).Times(2)

			opts.Target = version.V1_4
			old := assemble(src)
			Expect(old.Log.Diagnostics()).To(BeEmpty())
			Expect(opNames(old.Body("keep"))).To(Equal([]string{"iload_0", "istore", "return"}))
			Expect(opArgs(old.Body("keep"), "istore")).To(Equal([]bytecode.Arg{{Int: 2}}))

			opts.Target = version.V5
			current := assemble(src)
			Expect(opNames(current.Body("keep"))).To(Equal([]string{"iload_0", "istore_2", "return"}))
		})

		It("should resolve parameter-relative locals", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static add(JI)J",
				"  lload $0",
				"  iload $1",
				"  i2l",
				"  ladd",
				"  lreturn",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			Expect(opNames(res.Body("add"))).To(Equal([]string{"lload_0", "iload_2", "i2l", "ladd", "lreturn"}))
		})
	})

	Context("version gates", func() {
		It("should reject invokedynamic before 51.0", func() {
			res := assemble(source(
				".version 50 0",
				".method static m()V",
				"  invokedynamic run()V bootstrap",
				"  return",
				".end method",
			))

			errs := withSeverity(res, diag.Error)
			Expect(errs).To(HaveLen(1))
			Expect(errs[0].Kind).To(Equal(diag.VersionGate))
			Expect(errs[0].Message).To(HavePrefix("invokedynamic requires"))
			Expect(res.Version).To(Equal(version.V6))
		})

		It("should gate subroutines by version", func() {
			src := source(
				".method static m()V",
				"  jsr Sub",
				"  return",
				"Sub:",
				"  astore_0",
				"  ret 0",
				".end method",
			)

			res := assemble(src)
			errs := withSeverity(res, diag.Error)
			Expect(errs).To(HaveLen(2))
			for _, e := range errs {
				Expect(e.Kind).To(Equal(diag.VersionGate))
			}

			mockEmitter.EXPECT().Emit(gomock.Any())
			opts.Target = version.V5
			res = assemble(src)
			Expect(res.Log.Diagnostics()).To(BeEmpty())
			Expect(frameOf(res.Body("m"), "Sub").Stack).To(Equal("[R]"))
		})

		It("should warn on deprecated mnemonics", func() {
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method init()V",
				"  aload_0",
				"  invokenonvirtual java/lang/Object/<init>()V",
				"  return",
				".end method",
			))

			Expect(res.OK()).To(BeTrue())
			warnings := withSeverity(res, diag.Warning)
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0].Kind).To(Equal(diag.VersionGate))
			Expect(warnings[0].Message).To(HavePrefix("invokenonvirtual is deprecated"))
		})
	})

	Context("error flood", func() {
		It("should abort once a method exceeds the error limit", func() {
			opts.MaxErrors = 3

			res, err := Assemble("T.j", source(
				".method static m()V",
				"  bogus",
				"  bogus",
				"  bogus",
				"  bogus",
				"  return",
				".end method",
			), opts)

			Expect(err).To(MatchError(diag.ErrAborted))
			Expect(res.Log.Aborted()).To(BeTrue())
			Expect(res.Log.ErrorCount()).To(Equal(4))
			ds := res.Log.Diagnostics()
			Expect(ds[len(ds)-1].Kind).To(Equal(diag.Flood))
		})

		It("should count errors per method", func() {
			opts.MaxErrors = 3

			res, err := Assemble("T.j", source(
				".method static a()V",
				"  bogus",
				"  bogus",
				"  return",
				".end method",
				".method static b()V",
				"  bogus",
				"  bogus",
				"  return",
				".end method",
			), opts)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Log.ErrorCount()).To(Equal(4))
			Expect(res.Log.Aborted()).To(BeFalse())
		})
	})

	Context("with a custom resolver", func() {
		var (
			mockResolver *MockOpResolver
			std          *CatalogResolver
		)

		BeforeEach(func() {
			mockResolver = NewMockOpResolver(mockCtrl)
			std = NewCatalogResolver(nil)
			opts.Resolver = mockResolver
		})

		lookup := func(name string) *bytecode.OpInfo {
			op, ok := bytecode.Default().Lookup(name)
			Expect(ok).To(BeTrue())
			return op
		}

		It("should assemble every step of a macro", func() {
			mockResolver.EXPECT().Resolve("push2").Return(Resolution{
				Kind:    Macro,
				Steps:   []Step{{Op: lookup("iconst_1")}, {Op: lookup("iconst_1")}},
				Feature: version.Always,
			}, nil)
			mockResolver.EXPECT().Resolve(gomock.Any()).DoAndReturn(std.Resolve).AnyTimes()
			mockEmitter.EXPECT().Emit(gomock.Any())

			res := assemble(source(
				".method static two()I",
				"  push2",
				"  iadd",
				"  ireturn",
				".end method",
			))

			Expect(res.Log.Diagnostics()).To(BeEmpty())
			Expect(opNames(res.Body("two"))).To(Equal([]string{"iconst_1", "iconst_1", "iadd", "ireturn"}))
			Expect(res.Body("two").MaxStack).To(Equal(2))
		})

		It("should gate a mnemonic on its own feature range", func() {
			mockResolver.EXPECT().Resolve("push2").Return(Resolution{
				Kind:    Macro,
				Steps:   []Step{{Op: lookup("iconst_1")}, {Op: lookup("iconst_1")}},
				Feature: version.Since("push2", version.V11),
			}, nil)
			mockResolver.EXPECT().Resolve(gomock.Any()).DoAndReturn(std.Resolve).AnyTimes()

			res := assemble(source(
				".method static two()I",
				"  push2",
				"  iadd",
				"  ireturn",
				".end method",
			))

			Expect(messagesOf(withSeverity(res, diag.Error))).To(Equal([]string{
				"push2 requires version 55.0 or later; target is 52.0",
			}))
		})

		It("should report unknown mnemonics and resolver failures", func() {
			mockResolver.EXPECT().Resolve("frob").
				Return(Resolution{}, fmt.Errorf("%w: frob", ErrUnknownMnemonic))
			mockResolver.EXPECT().Resolve("zap").
				Return(Resolution{}, errors.New("resolver offline"))
			mockResolver.EXPECT().Resolve("return").DoAndReturn(std.Resolve)

			res := assemble(source(
				".method static m()V",
				"  frob",
				"  zap",
				"  return",
				".end method",
			))

			errs := withSeverity(res, diag.Error)
			Expect(messagesOf(errs)).To(Equal([]string{"unknown instruction frob", "resolver offline"}))
			Expect(errs[1].Kind).To(Equal(diag.Structural))
		})
	})
})
