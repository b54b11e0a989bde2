package openmath

// SymPy equivalents for symbols in the math-relevant Content Dictionaries.
// Protocol and metadata CDs (meta, scscp1, scscp2, sts) are intentionally
// absent: they carry no mathematical operations. The strings are the SymPy
// expressions shown to the model in prompt context and used to filter
// retrieval when executable definitions are required.
var sympyByCD = map[string]map[string]string{
	"arith1": {
		"plus":        "sympy.Add",
		"times":       "sympy.Mul",
		"minus":       "lambda a, b: a - b",
		"divide":      "lambda a, b: a / b",
		"power":       "sympy.Pow",
		"unary_minus": "lambda a: -a",
		"abs":         "sympy.Abs",
		"gcd":         "sympy.gcd",
		"lcm":         "sympy.lcm",
		"root":        "lambda a, n: a ** (sympy.Rational(1, n))",
		"sum":         "sympy.Sum",
		"product":     "sympy.Product",
	},
	"relation1": {
		"eq":     "sympy.Eq",
		"neq":    "sympy.Ne",
		"lt":     "sympy.Lt",
		"gt":     "sympy.Gt",
		"leq":    "sympy.Le",
		"geq":    "sympy.Ge",
		"approx": "lambda a, b, tol=1e-9: abs(a - b) < tol",
	},
	"integer1": {
		"factorial": "sympy.factorial",
		"quotient":  "lambda a, b: a // b",
		"remainder": "lambda a, b: a % b",
		"factorof":  "lambda a, b: b % a == 0",
	},
	"transc1": {
		"sin":     "sympy.sin",
		"cos":     "sympy.cos",
		"tan":     "sympy.tan",
		"cot":     "sympy.cot",
		"sec":     "sympy.sec",
		"csc":     "sympy.csc",
		"arcsin":  "sympy.asin",
		"arccos":  "sympy.acos",
		"arctan":  "sympy.atan",
		"arccot":  "sympy.acot",
		"arcsec":  "sympy.asec",
		"arccsc":  "sympy.acsc",
		"sinh":    "sympy.sinh",
		"cosh":    "sympy.cosh",
		"tanh":    "sympy.tanh",
		"coth":    "sympy.coth",
		"sech":    "sympy.sech",
		"csch":    "sympy.csch",
		"arcsinh": "sympy.asinh",
		"arccosh": "sympy.acosh",
		"arctanh": "sympy.atanh",
		"arccoth": "sympy.acoth",
		"arcsech": "sympy.asech",
		"arccsch": "sympy.acsch",
		"exp":     "sympy.exp",
		"ln":      "sympy.ln",
		"log":     "sympy.log",
	},
	"logic1": {
		"true":       "sympy.true",
		"false":      "sympy.false",
		"not":        "sympy.Not",
		"and":        "sympy.And",
		"or":         "sympy.Or",
		"implies":    "sympy.Implies",
		"equivalent": "sympy.Equivalent",
		"xor":        "sympy.Xor",
		"nand":       "sympy.Nand",
		"nor":        "sympy.Nor",
		"xnor":       "lambda *args: sympy.Not(sympy.Xor(*args))",
	},
	"set1": {
		"set":               "sympy.FiniteSet",
		"union":             "sympy.Union",
		"intersect":         "sympy.Intersection",
		"setdiff":           "sympy.Complement",
		"in":                "lambda x, S: x in S",
		"notin":             "lambda x, S: x not in S",
		"subset":            "lambda A, B: A.issubset(B)",
		"prsubset":          "lambda A, B: A.is_proper_subset(B)",
		"notsubset":         "lambda A, B: not A.issubset(B)",
		"notprsubset":       "lambda A, B: not A.is_proper_subset(B)",
		"emptyset":          "sympy.EmptySet",
		"cartesian_product": "sympy.ProductSet",
		"size":              "lambda S: S.measure if hasattr(S, 'measure') else len(S)",
		"map":               "lambda f, S: S.image(f)",
		"suchthat":          "lambda S, pred: S & sympy.ConditionSet(sympy.Symbol('x'), pred, S)",
	},
	"calculus1": {
		"diff":              "sympy.diff",
		"int":               "sympy.integrate",
		"defint":            "sympy.integrate",
		"nthdiff":           "lambda f, x, n: sympy.diff(f, x, n)",
		"partialdiff":       "sympy.diff",
		"partialdiffdegree": "lambda f, *args: sympy.diff(f, *args)",
	},
	"linalg1": {
		"vector_selector": "lambda v, i: v[i-1]",
		"matrix_selector": "lambda M, i, j: M[i-1, j-1]",
		"determinant":     "lambda M: M.det()",
		"transpose":       "lambda M: M.T",
		"scalarproduct":   "lambda u, v: u.dot(v)",
		"outerproduct":    "lambda u, v: u * v.T",
		"vectorproduct":   "lambda u, v: u.cross(v)",
	},
	"linalg2": {
		"vector":    "sympy.Matrix",
		"matrix":    "sympy.Matrix",
		"matrixrow": "lambda *args: list(args)",
	},
	"combinat1": {
		"binomial":    "sympy.binomial",
		"multinomial": "sympy.multinomial_coefficients",
		"Stirling1":   "sympy.functions.combinatorial.numbers.stirling",
		"Stirling2":   "sympy.functions.combinatorial.numbers.stirling",
		"stirling1":   "sympy.functions.combinatorial.numbers.stirling",
		"stirling2":   "sympy.functions.combinatorial.numbers.stirling",
		"Fibonacci":   "sympy.fibonacci",
		"Bell":        "sympy.bell",
	},
	"minmax1": {
		"min": "sympy.Min",
		"max": "sympy.Max",
	},
	"nums1": {
		"e":             "sympy.E",
		"i":             "sympy.I",
		"pi":            "sympy.pi",
		"gamma":         "sympy.EulerGamma",
		"infinity":      "sympy.oo",
		"NaN":           "sympy.nan",
		"rational":      "sympy.Rational",
		"based_integer": "lambda val, base: int(val, base)",
		"based_float":   "lambda val, base: float(val)",
	},
	"setname1": {
		"P": "sympy.Primes",
		"N": "sympy.Naturals",
		"Z": "sympy.Integers",
		"Q": "sympy.Rationals",
		"R": "sympy.Reals",
		"C": "sympy.Complexes",
	},
	"rounding1": {
		"ceiling": "sympy.ceiling",
		"floor":   "sympy.floor",
		"trunc":   "lambda x: sympy.sign(x) * sympy.floor(sympy.Abs(x))",
		"round":   "lambda x: sympy.floor(x + sympy.Rational(1, 2))",
	},
	"complex1": {
		"complex_cartesian": "lambda re, im: re + sympy.I * im",
		"complex_polar":     "lambda r, theta: r * sympy.exp(sympy.I * theta)",
		"real":              "sympy.re",
		"imaginary":         "sympy.im",
		"argument":          "sympy.arg",
		"conjugate":         "sympy.conjugate",
	},
	"limit1": {
		"limit":      "sympy.limit",
		"both_sides": "'+' or '-'",
		"above":      "'+'",
		"below":      "'-'",
		"null":       "None",
	},
	"piece1": {
		"piecewise": "sympy.Piecewise",
		"piece":     "lambda expr, cond: (expr, cond)",
		"otherwise": "lambda expr: (expr, True)",
	},
	"interval1": {
		"integer_interval":  "lambda a, b: sympy.Range(a, b + 1)",
		"interval":          "sympy.Interval",
		"interval_oo":       "lambda a, b: sympy.Interval.open(a, b)",
		"interval_cc":       "lambda a, b: sympy.Interval(a, b)",
		"interval_oc":       "lambda a, b: sympy.Interval.Lopen(a, b)",
		"interval_co":       "lambda a, b: sympy.Interval.Ropen(a, b)",
		"oriented_interval": "lambda a, b: sympy.Interval(a, b)",
	},
	"alg1": {
		"zero": "sympy.S.Zero",
		"one":  "sympy.S.One",
	},
	"quant1": {
		"forall": "lambda var, pred: ('forall', var, pred)",
		"exists": "lambda var, pred: ('exists', var, pred)",
	},
	"s_data1": {
		"mean":     "lambda *args: sum(args) / len(args)",
		"sdev":     "lambda *args: sympy.sqrt(sum((x - sum(args)/len(args))**2 for x in args) / len(args))",
		"variance": "lambda *args: sum((x - sum(args)/len(args))**2 for x in args) / len(args)",
		"mode":     "lambda *args: max(set(args), key=list(args).count)",
		"median":   "lambda *args: sorted(args)[len(args)//2]",
		"moment":   "lambda data, n: sum(x**n for x in data) / len(data)",
	},
	"s_dist1": {
		"mean":     "lambda *args: sum(args) / len(args)",
		"sdev":     "lambda *args: sympy.sqrt(sum((x - sum(args)/len(args))**2 for x in args) / len(args))",
		"variance": "lambda *args: sum((x - sum(args)/len(args))**2 for x in args) / len(args)",
		"mode":     "lambda *args: max(set(args), key=list(args).count)",
		"median":   "lambda *args: sorted(args)[len(args)//2]",
		"moment":   "lambda data, n: sum(x**n for x in data) / len(data)",
	},
	"fns1": {
		"domain":              "lambda f: f.domain if hasattr(f, 'domain') else None",
		"range":               "lambda f: f.range if hasattr(f, 'range') else None",
		"image":               "lambda f, S: S.image(f)",
		"identity":            "lambda x: x",
		"inverse":             "lambda f: 1/f",
		"left_inverse":        "lambda f: 1/f",
		"right_inverse":       "lambda f: 1/f",
		"lambda":              "lambda var, expr: sympy.Lambda(var, expr)",
		"compose":             "lambda f, g: lambda x: f(g(x))",
		"restriction":         "lambda f, S: f",
		"domainofapplication": "lambda S: S",
	},
	"veccalc1": {
		"divergence": "lambda F, vars: sum(sympy.diff(F[i], vars[i]) for i in range(len(vars)))",
		"grad":       "lambda f, vars: sympy.Matrix([sympy.diff(f, v) for v in vars])",
		"curl":       "lambda F, vars: sympy.Matrix([sympy.diff(F[2], vars[1]) - sympy.diff(F[1], vars[2]), sympy.diff(F[0], vars[2]) - sympy.diff(F[2], vars[0]), sympy.diff(F[1], vars[0]) - sympy.diff(F[0], vars[1])])",
		"Laplacian":  "lambda f, vars: sum(sympy.diff(f, v, 2) for v in vars)",
	},
	"list1": {
		"list":     "lambda *args: list(args)",
		"map":      "lambda f, lst: [f(x) for x in lst]",
		"suchthat": "lambda lst, pred: [x for x in lst if pred(x)]",
	},
	"multiset1": {
		"multiset":          "lambda *args: list(args)",
		"size":              "len",
		"intersect":         "lambda a, b: [x for x in a if x in b]",
		"union":             "lambda a, b: a + b",
		"setdiff":           "lambda a, b: [x for x in a if x not in b]",
		"subset":            "lambda a, b: all(x in b for x in a)",
		"in":                "lambda x, S: x in S",
		"notin":             "lambda x, S: x not in S",
		"prsubset":          "lambda a, b: all(x in b for x in a) and len(a) < len(b)",
		"notsubset":         "lambda a, b: not all(x in b for x in a)",
		"notprsubset":       "lambda a, b: not (all(x in b for x in a) and len(a) < len(b))",
		"cartesian_product": "lambda *sets: list(itertools.product(*sets))",
		"emptyset":          "[]",
	},
	"polynomial1": {
		"degree":              "sympy.degree",
		"coefficient":         "sympy.Poly.nth",
		"expand":              "sympy.expand",
		"leading_term":        "sympy.LT",
		"leading_coefficient": "sympy.LC",
		"leading_monomial":    "sympy.LM",
	},
	"polynomial3": {
		"gcd":       "sympy.gcd",
		"lcm":       "sympy.lcm",
		"quotient":  "sympy.div",
		"remainder": "sympy.div",
	},
	"polynomial4": {
		"factorise": "sympy.factor",
		"factors":   "sympy.factorint",
	},
	"linalg3": {
		"rowcount":    "lambda M: M.rows",
		"columncount": "lambda M: M.cols",
		"vector":      "sympy.Matrix",
		"matrix":      "sympy.Matrix",
	},
	"linalg4": {
		"eigenvalue":         "lambda M: M.eigenvals()",
		"eigenvector":        "lambda M: M.eigenvects()",
		"characteristic_eqn": "lambda M, x: M.charpoly(x)",
		"rank":               "lambda M: M.rank()",
		"rowcount":           "lambda M: M.rows",
		"columncount":        "lambda M: M.cols",
	},
	"linalg5": {
		"identity":         "sympy.eye",
		"zero":             "sympy.zeros",
		"diagonal_matrix":  "sympy.diag",
		"symmetric":        "lambda M: M.equals(M.T)",
		"Hermitian":        "lambda M: M.equals(M.H)",
		"tridiagonal":      "lambda M: M.is_tridiagonal if hasattr(M, 'is_tridiagonal') else None",
		"upper_triangular": "lambda M: M.is_upper",
		"lower_triangular": "lambda M: M.is_lower",
	},
	"integer2": {
		"divides": "lambda a, b: b % a == 0",
		"eqmod":   "lambda a, b, n: (a - b) % n == 0",
		"euler":   "sympy.totient",
		"ord":     "lambda a, n: sympy.n_order(a, n)",
	},
	"arith3": {
		"extended_gcd": "sympy.gcdex",
	},
	"permutation1": {
		"cycle":        "sympy.combinatorics.Permutation",
		"is_bijective": "lambda p: p.is_bijective if hasattr(p, 'is_bijective') else True",
		"order":        "lambda p: p.order()",
		"inverse":      "lambda p: p**-1",
		"sign":         "lambda p: p.signature()",
	},
}

var sympyMappings = func() map[string]string {
	out := make(map[string]string)
	for cd, symbols := range sympyByCD {
		for name, code := range symbols {
			out[SymbolID(cd, name)] = code
		}
	}
	return out
}()

// SymPyFunction returns the SymPy expression string for a "cd:name" symbol
// ID, or "" when the symbol has no mapping.
func SymPyFunction(symbolID string) string {
	return sympyMappings[symbolID]
}

// HasSymPyMapping reports whether the symbol has a SymPy equivalent.
func HasSymPyMapping(symbolID string) bool {
	_, ok := sympyMappings[symbolID]
	return ok
}
