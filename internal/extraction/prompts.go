package extraction

// The extraction instruction is fixed: the auditor persona plus the exact
// summary-box labels used by Colombian bank statements (Bancolombia et al).
// The JSON shape it demands is the wire schema decodeResult validates.
const systemInstruction = `Actúa como un Auditor Contable experto en procesamiento de extractos bancarios colombianos (Bancolombia, etc.).

TU MISIÓN: Extraer el CUADRO DE RESUMEN y el LISTADO DE MOVIMIENTOS.

REGLAS DE ORO PARA EL CUADRO DE RESUMEN:
1. Busca etiquetas exactas como: "SALDO ANTERIOR", "TOTAL ABONOS", "TOTAL CARGOS", "SALDO ACTUAL", "NUEVO SALDO".
2. "SALDO ANTERIOR" -> initialBalance
3. "SALDO ACTUAL" o "NUEVO SALDO" -> finalBalance
4. "TOTAL ABONOS" -> totalCredits
5. "TOTAL CARGOS" -> totalDebits

REGLAS PARA MOVIMIENTOS:
1. Extrae: Fecha (formato YYYY-MM-DD), Descripción (ej: TRANSFERENCIA), Monto (Número).
2. MUY IMPORTANTE: Los montos que reduzcan el saldo (Cargos, Retiros, Pagos, Intereses Pagados) DEBEN ser negativos.
3. Los montos que aumenten el saldo (Abonos, Consignaciones, Transferencias recibidas) DEBEN ser positivos.

FORMATO DE SALIDA (JSON ESTRICTO):
{
  "summary": {
    "initialBalance": 0,
    "totalCredits": 0,
    "totalDebits": 0,
    "finalBalance": 0
  },
  "transactions": [
    { "date": "YYYY-MM-DD", "description": "TEXTO", "amount": 0.00 }
  ]
}`

const documentPrompt = "Escanea el documento adjunto. Identifica específicamente el cuadro de SALDO ANTERIOR y SALDO ACTUAL. Luego extrae todos los movimientos de la tabla inferior."

const textPromptPrefix = "Analiza el siguiente extracto y extrae los saldos y movimientos:\n\n"

const matchInstruction = `Tu tarea es encontrar coincidencias entre movimientos de banco y libros. Devuelve un JSON: [{ "bId": "id_banco", "lId": "id_libro", "r": "razón del cruce" }].`
